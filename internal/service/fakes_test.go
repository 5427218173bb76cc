package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/pkg/config"
	"github.com/noah-isme/school-intake-api/pkg/monday"
	"github.com/noah-isme/school-intake-api/pkg/storage"
)

type columnWrite struct {
	Ref      monday.ItemRef
	ColumnID string
	Value    interface{}
}

type subitemCall struct {
	ParentID string
	Name     string
	Values   map[string]interface{}
}

type linkCall struct {
	Ref      monday.ItemRef
	ColumnID string
	URL      string
	Text     string
}

// fakeRecords stands in for the record board. Subitem failures and panics are keyed by teacher name.
type fakeRecords struct {
	mu           sync.Mutex
	createErr    error
	subitemErr   map[string]error
	subitemPanic map[string]bool
	columnErr    map[string]error

	items      []string
	itemValues []map[string]interface{}
	subitems   []subitemCall
	columns    []columnWrite
	links      []linkCall
}

func (f *fakeRecords) CreateItem(_ context.Context, name string, values map[string]interface{}) (monday.ItemRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, name)
	f.itemValues = append(f.itemValues, values)
	if f.createErr != nil {
		return monday.ItemRef{}, f.createErr
	}
	return monday.ItemRef{BoardID: "100", ItemID: "555"}, nil
}

func (f *fakeRecords) CreateSubitem(_ context.Context, parentID, name string, values map[string]interface{}) (monday.ItemRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subitemPanic[name] {
		panic("subitem exploded for " + name)
	}
	f.subitems = append(f.subitems, subitemCall{ParentID: parentID, Name: name, Values: values})
	if err := f.subitemErr[name]; err != nil {
		return monday.ItemRef{}, err
	}
	return monday.ItemRef{BoardID: "300", ItemID: fmt.Sprintf("9%02d", len(f.subitems))}, nil
}

func (f *fakeRecords) SetColumnValue(_ context.Context, ref monday.ItemRef, columnID string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columns = append(f.columns, columnWrite{Ref: ref, ColumnID: columnID, Value: value})
	return f.columnErr[columnID]
}

func (f *fakeRecords) SetLinkValue(_ context.Context, ref monday.ItemRef, columnID, url, text string) (monday.LinkWrite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, linkCall{Ref: ref, ColumnID: columnID, URL: url, Text: text})
	return monday.LinkWrite{Encoder: monday.EncoderLinkObject, Attempts: 1}, nil
}

func (f *fakeRecords) ItemURL(itemID string) string {
	return "https://acme.monday.com/boards/100/pulses/" + itemID
}

func (f *fakeRecords) subitemNames() []string {
	names := make([]string, 0, len(f.subitems))
	for _, s := range f.subitems {
		names = append(names, s.Name)
	}
	return names
}

func (f *fakeRecords) columnWrites(columnID string) []columnWrite {
	var out []columnWrite
	for _, c := range f.columns {
		if c.ColumnID == columnID {
			out = append(out, c)
		}
	}
	return out
}

type teacherFolderCall struct {
	Index    int
	ChildID  string
	ParentID string
}

// fakeFolders records folder resolutions and uploads.
type fakeFolders struct {
	mu             sync.Mutex
	layout         string
	folderErr      error
	uploadErr      map[string]error
	folderCalls    int
	teacherFolders []teacherFolderCall
	uploads        []string
}

func (f *fakeFolders) Layout() string {
	if f.layout == "" {
		return config.FolderLayoutDated
	}
	return f.layout
}

func (f *fakeFolders) SubmissionFolder(_ context.Context, schoolName string) (*storage.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folderCalls++
	if f.folderErr != nil {
		return nil, f.folderErr
	}
	return &storage.Item{ID: "root/" + schoolName + "/2026-10-19", Name: "2026-10-19"}, nil
}

func (f *fakeFolders) TeacherFolder(_ context.Context, schoolName string, index int, childID, parentID string) (*storage.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teacherFolders = append(f.teacherFolders, teacherFolderCall{Index: index, ChildID: childID, ParentID: parentID})
	return &storage.Item{ID: fmt.Sprintf("root/%s/Teacher %d", schoolName, index+1)}, nil
}

func (f *fakeFolders) UploadFile(_ context.Context, folderID string, att models.Attachment) (*storage.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, att.Name)
	if err := f.uploadErr[att.Name]; err != nil {
		return nil, err
	}
	return &storage.Item{ID: folderID + "/" + att.Name, Name: att.Name, URL: "https://files.example.org/" + att.Name}, nil
}

type fakeDocuments struct {
	mu       sync.Mutex
	err      error
	rendered []models.Submission
	folders  []string
}

func (f *fakeDocuments) RenderAndStore(_ context.Context, folderID string, sub models.Submission, _, _ string) (*storage.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rendered = append(f.rendered, sub)
	f.folders = append(f.folders, folderID)
	if f.err != nil {
		return nil, f.err
	}
	return &storage.Item{ID: folderID + "/summary.pdf", URL: "https://files.example.org/summary.pdf"}, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	sent     int
	document string
}

func (f *fakeNotifier) Notify(_ context.Context, _ models.School, _ []models.Teacher, _, _, documentURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	f.document = documentURL
	return f.err
}

type fakeLedger struct {
	mu   sync.Mutex
	err  error
	runs []models.SubmissionRun
}

func (f *fakeLedger) Create(_ context.Context, run *models.SubmissionRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return f.err
}

var errBoom = errors.New("boom")
