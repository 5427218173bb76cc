package monday

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Link encoder names, in the order they are tried.
const (
	EncoderLinkObject = "link-object"
	EncoderLinkSimple = "link-simple"
	EncoderLinkInline = "link-inline"
	EncoderComment    = "comment"
)

// linkEncoder builds one candidate request for writing a link column.
type linkEncoder struct {
	name  string
	build func(ref ItemRef, columnID, url, text string) (Request, error)
}

// Link columns have accepted different payload shapes over time, so writes walk this fixed list.
var linkEncoders = []linkEncoder{
	{name: EncoderLinkObject, build: buildLinkObject},
	{name: EncoderLinkSimple, build: buildLinkSimple},
	{name: EncoderLinkInline, build: buildLinkInline},
}

func buildLinkObject(ref ItemRef, columnID, url, text string) (Request, error) {
	raw, err := json.Marshal(map[string]string{"url": url, "text": text})
	if err != nil {
		return Request{}, err
	}
	return Request{Query: changeValueMutation, Variables: map[string]interface{}{
		"boardId":  ref.BoardID,
		"itemId":   ref.ItemID,
		"columnId": columnID,
		"value":    string(raw),
	}}, nil
}

func buildLinkSimple(ref ItemRef, columnID, url, text string) (Request, error) {
	return Request{Query: changeSimpleValueMutation, Variables: map[string]interface{}{
		"boardId":  ref.BoardID,
		"itemId":   ref.ItemID,
		"columnId": columnID,
		"value":    strings.TrimSpace(url + " " + text),
	}}, nil
}

// buildLinkInline embeds the JSON value as a string literal in the document itself.
func buildLinkInline(ref ItemRef, columnID, url, text string) (Request, error) {
	raw, err := json.Marshal(map[string]string{"url": url, "text": text})
	if err != nil {
		return Request{}, err
	}
	query := fmt.Sprintf(`mutation { change_column_value(board_id: "%s", item_id: "%s", column_id: "%s", value: "%s") { id } }`,
		EscapeGraphQLString(ref.BoardID),
		EscapeGraphQLString(ref.ItemID),
		EscapeGraphQLString(columnID),
		EscapeGraphQLString(string(raw)),
	)
	return Request{Query: query}, nil
}

// LinkWrite reports how a link value ended up on the item.
type LinkWrite struct {
	Encoder  string
	Attempts int
	Rejected []string
	// UpdateID is set when the link was posted as a comment.
	UpdateID string
}

// Commented reports whether every encoder was rejected and a comment was posted instead.
func (w LinkWrite) Commented() bool {
	return w.Encoder == EncoderComment
}

// SetLinkValue writes a link column, trying each encoder in order until one is accepted. When all of
// them are rejected the link is posted as a comment on the item. Transport errors abort immediately.
func (c *Client) SetLinkValue(ctx context.Context, ref ItemRef, columnID, url, text string) (LinkWrite, error) {
	var result LinkWrite
	for _, enc := range linkEncoders {
		req, err := enc.build(ref, columnID, url, text)
		if err != nil {
			return result, fmt.Errorf("build %s payload: %w", enc.name, err)
		}
		result.Attempts++
		resp, err := c.Execute(ctx, "set_link_"+enc.name, req)
		if err != nil {
			return result, err
		}
		if !resp.Failed() {
			result.Encoder = enc.name
			c.observeEncoding(enc.name)
			return result, nil
		}
		rejection := resp.Err(enc.name).Error()
		result.Rejected = append(result.Rejected, rejection)
		c.logger.Debug("link encoding rejected", zap.String("encoder", enc.name), zap.String("column", columnID), zap.String("reason", rejection))
	}

	label := text
	if label == "" {
		label = columnID
	}
	updateID, err := c.CreateUpdate(ctx, ref.ItemID, fmt.Sprintf("%s: %s", label, url))
	if err != nil {
		return result, fmt.Errorf("link column %s rejected in all formats and comment failed: %w", columnID, err)
	}
	result.UpdateID = updateID
	result.Encoder = EncoderComment
	c.observeEncoding(EncoderComment)
	c.logger.Warn("link column rejected in all formats, posted comment", zap.String("column", columnID), zap.String("item_id", ref.ItemID))
	return result, nil
}

func (c *Client) observeEncoding(name string) {
	if c.observer != nil {
		c.observer.ObserveLinkEncoding(name)
	}
}
