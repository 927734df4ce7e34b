package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/ocr-bilingual/internal/store"
	"github.com/nerdneilsfield/ocr-bilingual/internal/store/github"
	"github.com/nerdneilsfield/ocr-bilingual/internal/test"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers/retry"
)

func newMockStore(t *testing.T) (store.Store, *test.MockGitHubServer) {
	t.Helper()
	mock := test.NewMockGitHubServer(t)
	s, err := github.New(github.Config{
		Owner:   mock.Owner,
		Repo:    mock.Repo,
		APIBase: mock.URL,
		Retry:   retry.Config{MaxRetries: 0},
	}, nil)
	require.NoError(t, err)
	return s, mock
}

func file(p string) store.Entry {
	return store.Entry{Name: p[len("s1/"):], Path: p, Type: store.EntryFile}
}

func TestGroupEntries(t *testing.T) {
	entries := []store.Entry{
		file("s1/paper.pdf"),
		file("s1/paper.md"),
		file("s1/paper_dual.md"),
		file("s1/orphan.md"),
		file("s1/scan.JPEG"),
		file("s1/scan.md"),
		file("s1/cafe\u0301.pdf"),
		file("s1/café.md"),
		file("s1/notes.txt"),
		{Name: "sub", Path: "s1/sub", Type: store.EntryDir},
	}

	groups := GroupEntries(entries)
	require.Len(t, groups, 5)

	paper := groups[0]
	assert.Equal(t, "paper", paper.Base)
	assert.Equal(t, "s1/paper.pdf", paper.Source)
	assert.Equal(t, []Variant{
		{DisplayName: "paper", Path: "s1/paper.md"},
		{DisplayName: "paper (双语)", Path: "s1/paper_dual.md", Dual: true},
	}, paper.Variants)

	assert.Equal(t, "orphan", groups[1].Base)
	assert.False(t, groups[1].Complete())

	assert.Equal(t, "s1/scan.JPEG", groups[2].Source)
	assert.True(t, groups[2].Complete())

	// NFD 和 NFC 形式的同名文件归为一组
	assert.Equal(t, "café", groups[3].Base)
	assert.True(t, groups[3].Complete())

	assert.Equal(t, "notes", groups[4].Base)
	assert.False(t, groups[4].Complete())
}

func TestFlattenSortsByTimestamp(t *testing.T) {
	groups := []*Group{
		{Base: "a", Source: "a.pdf", Variants: []Variant{{DisplayName: "a", Path: "a.md"}}},
		{Base: "b", Source: "b.pdf", Variants: []Variant{{DisplayName: "b", Path: "b.md"}, {DisplayName: "b (双语)", Path: "b_dual.md"}}, Timestamp: 10},
		{Base: "c", Source: "c.pdf", Timestamp: 99},
		{Base: "d", Source: "d.pdf", Variants: []Variant{{DisplayName: "d", Path: "d.md"}}},
		{Base: "e", Source: "e.pdf", Variants: []Variant{{DisplayName: "e", Path: "e.md"}}, Timestamp: 20},
	}

	records := Flatten(groups)
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"e", "b", "b (双语)", "a", "d"}, names)
	assert.Equal(t, "b.pdf", records[2].SourcePath)
}

func TestBuildNineGroups(t *testing.T) {
	s, mock := newMockStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 9; i++ {
		committed := base.Add(time.Duration(i) * time.Hour)
		mock.PutFile(fmt.Sprintf("s1/doc%d.pdf", i), []byte("%PDF"), committed)
		mock.PutFile(fmt.Sprintf("s1/doc%d.md", i), []byte("# doc"), committed)
	}

	records, err := NewBuilder(s, 0, nil).Rebuild(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, records, 9)

	assert.Equal(t, 7, mock.CommitLookups())

	want := []string{"doc7", "doc6", "doc5", "doc4", "doc3", "doc2", "doc1", "doc8", "doc9"}
	for i, r := range records {
		assert.Equal(t, want[i], r.Name)
		if i < 7 {
			assert.Equal(t, base.Add(time.Duration(7-i)*time.Hour).Unix(), r.Timestamp)
		} else {
			assert.Zero(t, r.Timestamp)
		}
	}
}

func TestBuildEnrichmentSkipsSourcelessGroups(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	mock.PutFile("s1/a.md", []byte("orphan"), now)
	mock.PutFile("s1/b.pdf", []byte("%PDF"), now)
	mock.PutFile("s1/b.md", []byte("# b"), now)

	records, err := NewBuilder(s, 1, nil).Rebuild(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].Name)
	assert.Equal(t, now.Unix(), records[0].Timestamp)
	assert.Equal(t, 1, mock.CommitLookups())
}

func TestBuildEnrichmentFailureKeepsZero(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	for _, name := range []string{"a", "b"} {
		mock.PutFile("s1/"+name+".pdf", []byte("%PDF"), now)
		mock.PutFile("s1/"+name+".md", []byte("#"), now)
	}
	mock.SetFailCommits("s1/a.pdf", true)

	records, err := NewBuilder(s, 7, nil).Rebuild(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].Name)
	assert.Equal(t, "a", records[1].Name)
	assert.Zero(t, records[1].Timestamp)
}

func TestBuildListingFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.PutFile("s1/a.pdf", []byte("%PDF"), time.Now())
	mock.SetFailList(true)

	b := NewBuilder(s, 7, nil)
	_, err := b.Rebuild(context.Background(), "s1")
	require.Error(t, err)

	records := b.Build(context.Background(), "s1")
	assert.NotNil(t, records)
	assert.Empty(t, records)

	// 用户目录不存在不算失败
	mock.SetFailList(false)
	records, err = b.Rebuild(context.Background(), "s9")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
