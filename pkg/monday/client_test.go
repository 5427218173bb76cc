package monday

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Auth    string
	Request Request
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []recordedCall
	replies []func(w http.ResponseWriter)
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req Request
		require.NoError(t, json.Unmarshal(raw, &req))

		f.mu.Lock()
		idx := len(f.calls)
		f.calls = append(f.calls, recordedCall{Auth: r.Header.Get("Authorization"), Request: req})
		f.mu.Unlock()

		if idx < len(f.replies) {
			f.replies[idx](w)
			return
		}
		writeJSON(w, `{"data":{"change_column_value":{"id":"1"}}}`)
	}
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func rejected(w http.ResponseWriter) {
	writeJSON(w, `{"errors":[{"message":"invalid value"}],"data":null}`)
}

func accepted(w http.ResponseWriter) {
	writeJSON(w, `{"data":{"change_column_value":{"id":"77"}}}`)
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return New(Config{APIURL: srv.URL, Token: "tok", BoardID: "100", BoardURL: "https://acme.monday.com/boards/100"})
}

func TestEscapeGraphQLStringRoundTrip(t *testing.T) {
	inputs := []string{
		``,
		`plain`,
		`back\slash`,
		`"quoted"`,
		"line\nbreak",
		"carriage\rreturn",
		`\"already escaped\"`,
		"mixed \\ \" \n \r \\n",
	}
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune{'a', '\\', '"', '\n', '\r', 'n', ' ', 'é'}
	for i := 0; i < 200; i++ {
		var b strings.Builder
		n := rng.Intn(24)
		for j := 0; j < n; j++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		inputs = append(inputs, b.String())
	}

	for _, in := range inputs {
		literal := `"` + EscapeGraphQLString(in) + `"`
		var out string
		require.NoError(t, json.Unmarshal([]byte(literal), &out), "literal %q", literal)
		require.Equal(t, in, out)
	}
}

func TestExecuteReturnsRejectedResponseWithoutError(t *testing.T) {
	api := &fakeAPI{replies: []func(http.ResponseWriter){
		func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "upstream exploded")
		},
	}}
	client := newTestClient(t, api)

	resp, err := client.Execute(context.Background(), "probe", Request{Query: "{ me { id } }"})
	require.NoError(t, err)
	require.True(t, resp.Failed())
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Contains(t, resp.Err("probe").Error(), "upstream exploded")
	require.Equal(t, "Bearer tok", api.calls[0].Auth)
}

func TestCreateItemDoubleEncodesColumnValues(t *testing.T) {
	api := &fakeAPI{replies: []func(http.ResponseWriter){
		func(w http.ResponseWriter) { writeJSON(w, `{"data":{"create_item":{"id":"555"}}}`) },
	}}
	client := newTestClient(t, api)

	ref, err := client.CreateItem(context.Background(), "Lincoln Elementary", map[string]interface{}{
		"text_contact": "Ada",
		"email_contact": map[string]string{"email": "ada@example.org", "text": "ada@example.org"},
	})
	require.NoError(t, err)
	assert.Equal(t, ItemRef{BoardID: "100", ItemID: "555"}, ref)

	vars := api.calls[0].Request.Variables
	encoded, ok := vars["columnValues"].(string)
	require.True(t, ok, "column values must travel as a JSON string")
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(encoded), &decoded))
	assert.Equal(t, "Ada", decoded["text_contact"])
	assert.Equal(t, "Lincoln Elementary", vars["itemName"])
}

func TestCreateItemAcceptsOpaqueAndNumericIDs(t *testing.T) {
	api := &fakeAPI{replies: []func(http.ResponseWriter){
		func(w http.ResponseWriter) { writeJSON(w, `{"data":{"create_item":{"id":"item-7f3a"}}}`) },
		func(w http.ResponseWriter) { writeJSON(w, `{"data":{"create_item":{"id":12345678901}}}`) },
	}}
	client := newTestClient(t, api)

	ref, err := client.CreateItem(context.Background(), "Lincoln Elementary", nil)
	require.NoError(t, err)
	assert.Equal(t, "item-7f3a", ref.ItemID)

	ref, err = client.CreateItem(context.Background(), "Oak Ridge", nil)
	require.NoError(t, err)
	assert.Equal(t, "12345678901", ref.ItemID)
}

func TestCreateItemSurfacesRemoteErrors(t *testing.T) {
	api := &fakeAPI{replies: []func(http.ResponseWriter){rejected}}
	client := newTestClient(t, api)

	_, err := client.CreateItem(context.Background(), "x", nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, []string{"invalid value"}, remote.Messages)
}

func TestCreateSubitemUsesSubitemBoard(t *testing.T) {
	api := &fakeAPI{replies: []func(http.ResponseWriter){
		func(w http.ResponseWriter) {
			writeJSON(w, `{"data":{"create_subitem":{"id":"901","board":{"id":"300"}}}}`)
		},
	}}
	client := newTestClient(t, api)

	ref, err := client.CreateSubitem(context.Background(), "555", "Ms. Rivera", nil)
	require.NoError(t, err)
	require.Equal(t, ItemRef{BoardID: "300", ItemID: "901"}, ref)
	require.Equal(t, "555", api.calls[0].Request.Variables["parentId"])
	require.Equal(t, "{}", api.calls[0].Request.Variables["columnValues"])
}

func TestSetColumnValueScalarAndStructured(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)
	ref := ItemRef{BoardID: "100", ItemID: "555"}

	require.NoError(t, client.SetColumnValue(context.Background(), ref, "long_text_calendar", "File: https://x"))
	require.NoError(t, client.SetColumnValue(context.Background(), ref, "status", map[string]string{"label": "New"}))

	require.Len(t, api.calls, 2)
	require.Contains(t, api.calls[0].Request.Query, "change_simple_column_value")
	require.Equal(t, "File: https://x", api.calls[0].Request.Variables["value"])
	require.Contains(t, api.calls[1].Request.Query, "change_column_value")
	require.JSONEq(t, `{"label":"New"}`, api.calls[1].Request.Variables["value"].(string))
}

func TestSetLinkValueStopsAtFirstAcceptedEncoding(t *testing.T) {
	api := &fakeAPI{replies: []func(http.ResponseWriter){accepted}}
	client := newTestClient(t, api)

	result, err := client.SetLinkValue(context.Background(), ItemRef{BoardID: "100", ItemID: "555"}, "link_pdf", "https://files/doc.pdf", "Summary")
	require.NoError(t, err)
	require.Equal(t, EncoderLinkObject, result.Encoder)
	require.Equal(t, 1, result.Attempts)
	require.Len(t, api.calls, 1)
}

func TestSetLinkValueFallsThroughToThirdEncoding(t *testing.T) {
	api := &fakeAPI{replies: []func(http.ResponseWriter){rejected, rejected, accepted}}
	client := newTestClient(t, api)

	result, err := client.SetLinkValue(context.Background(), ItemRef{BoardID: "100", ItemID: "555"}, "link_pdf", "https://files/doc.pdf?b=\"2\"", "Summary")
	require.NoError(t, err)
	require.Equal(t, EncoderLinkInline, result.Encoder)
	require.Equal(t, 3, result.Attempts)
	require.Len(t, result.Rejected, 2)
	require.Len(t, api.calls, 3)

	third := api.calls[2].Request
	require.Empty(t, third.Variables)
	require.Contains(t, third.Query, `column_id: "link_pdf"`)
	require.Contains(t, third.Query, `value: "{\"text\":\"Summary\",\"url\":\"https://files/doc.pdf?b=\\\"2\\\"\"}"`)
}

func TestSetLinkValuePostsCommentWhenAllEncodingsRejected(t *testing.T) {
	api := &fakeAPI{replies: []func(http.ResponseWriter){rejected, rejected, rejected,
		func(w http.ResponseWriter) { writeJSON(w, `{"data":{"create_update":{"id":"u1"}}}`) },
	}}
	client := newTestClient(t, api)

	result, err := client.SetLinkValue(context.Background(), ItemRef{BoardID: "100", ItemID: "555"}, "link_pdf", "https://files/doc.pdf", "Summary PDF")
	require.NoError(t, err)
	require.True(t, result.Commented())
	require.Equal(t, "u1", result.UpdateID)
	require.Len(t, api.calls, 4)
	require.Contains(t, api.calls[3].Request.Query, "create_update")
	require.Equal(t, "Summary PDF: https://files/doc.pdf", api.calls[3].Request.Variables["body"])
}

func TestItemURL(t *testing.T) {
	client := New(Config{BoardURL: "https://acme.monday.com/boards/100/"})
	require.Equal(t, "https://acme.monday.com/boards/100/pulses/9", client.ItemURL("9"))
	require.Empty(t, New(Config{}).ItemURL("9"))
}
