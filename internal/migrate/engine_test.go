package migrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/tracker/testutil"
	"github.com/steveyegge/trackmigrate/internal/types"
	"github.com/steveyegge/trackmigrate/internal/usermap"
	"github.com/steveyegge/trackmigrate/internal/ytracker"
)

func newMockTracker(t *testing.T) (*testutil.TrackerMockServer, *ytracker.Client) {
	t.Helper()
	mock := testutil.NewTrackerMockServer()
	t.Cleanup(mock.Close)

	client, err := ytracker.NewClient(ytracker.Config{BaseURL: mock.URL(), OAuthToken: "tok", OrgID: "123"})
	require.NoError(t, err)
	client.HTTP.BackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
	}
	return mock, client
}

func TestEngineEndToEnd(t *testing.T) {
	mock, client := newMockTracker(t)
	mock.AddUser("b1", "bob", "bob@example.com", "Bob")
	mock.AddUser("c1", "carol", "carol@example.com", "Carol")

	base := newFakeSource(types.Project{Key: "P", Name: "Platform"})
	src := &fetchingSource{
		fakeSource: base,
		comments: map[string][]tracker.RawComment{
			"P-2": {{Author: ptr("c1"), Body: "fetched comment"}},
		},
		attachments: map[string][]tracker.RawAttachment{
			"P-2": {{Filename: "trace.log", Content: types.InlineContent("stack")}},
		},
	}

	first := rawIssue("P-1", "First")
	first.Assignee = ptr("a1")
	first.Reporter = ptr("c1")
	first.Status = ptr("Open")
	first.Links = []tracker.RawLink{{TargetKey: "P-2", TypeName: "Relates", Direction: tracker.LinkOutward}}
	first.Comments = []tracker.RawComment{{Author: ptr("zz"), Body: "inline"}}
	second := tracker.RawIssue{Key: "P-2", Summary: ptr("Second"), Followers: []string{"a1", "c1"}}
	base.add("P", first, second)

	engine := &Engine{
		Source: src,
		Dest:   client,
		Users:  usermap.Mapping{"a1": "b1"},
		Logger: discardLogger(),
	}
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fake", summary.Source)
	assert.Equal(t, 1, summary.Projects)
	assert.Equal(t, 2, summary.Extracted)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Queues)
	assert.Positive(t, summary.Elapsed)
	require.NotNil(t, summary.Import)
	assert.Equal(t, 2, summary.Import.Created)
	assert.Equal(t, 2, summary.Import.Comments)
	assert.Equal(t, 1, summary.Import.Attachments)
	assert.Equal(t, 2, summary.Import.Followers)
	assert.Equal(t, 1, summary.Import.Links)
	assert.Len(t, summary.Import.Warnings, 1, "comment author zz is unknown")

	assert.True(t, mock.HasQueue("P"))
	p1 := mock.Issue("P-1")
	require.NotNil(t, p1)
	assert.Equal(t, "First", p1.Summary)
	assert.Equal(t, "b1", p1.Assignee)
	assert.Equal(t, "c1", p1.Author)
	require.Len(t, p1.Comments, 1)
	assert.Empty(t, p1.Comments[0].Author)
	require.Len(t, p1.Links, 1)
	assert.Equal(t, "P-2", p1.Links[0].Issue)
	assert.Equal(t, types.LinkTypeRelates, p1.Links[0].Relationship)

	p2 := mock.Issue("P-2")
	require.NotNil(t, p2)
	assert.ElementsMatch(t, []string{"b1", "c1"}, p2.Followers)
	require.Len(t, p2.Attachments, 1)
	assert.Equal(t, []byte("stack"), p2.Attachments[0].Content)
	assert.Equal(t, "c1", p2.Comments[0].Author)
}

func TestEngineNothingToMigrate(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{"no projects", newFakeSource()},
		{"no issues", newFakeSource(types.Project{Key: "P"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := testutil.NewFakeDestination()
			engine := &Engine{Source: tt.src, Dest: dest, Logger: discardLogger()}

			summary, err := engine.Run(context.Background())
			require.ErrorIs(t, err, ErrNothingToMigrate)
			require.NotNil(t, summary)
			assert.Nil(t, summary.Import)
			assert.Empty(t, dest.Calls)
		})
	}
}

func TestEngineExtractErrorStopsBeforeImport(t *testing.T) {
	src := newFakeSource(types.Project{Key: "P"})
	src.add("P", rawIssue("P-1", "x"))
	src.pageErr["P"] = 1
	dest := testutil.NewFakeDestination()

	_, err := (&Engine{Source: src, Dest: dest, Logger: discardLogger()}).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, dest.Calls)
}

func TestEngineTransformErrorStopsBeforeImport(t *testing.T) {
	src := &fetchingSource{fakeSource: newFakeSource(types.Project{Key: "P"}), err: errors.New("403")}
	src.add("P", tracker.RawIssue{Key: "P-1"})
	dest := testutil.NewFakeDestination()

	summary, err := (&Engine{Source: src, Dest: dest, Logger: discardLogger()}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, 1, summary.Extracted)
	assert.Zero(t, summary.Processed)
	assert.Empty(t, dest.Calls)
}

func TestEngineImportErrorReturnsPartialSummary(t *testing.T) {
	src := newFakeSource(types.Project{Key: "P"})
	src.add("P", rawIssue("P-1", "a"), rawIssue("P-2", "b"))
	dest := testutil.NewFakeDestination()
	created := 0
	dest.Fail = func(method, _ string) error {
		if method == "CreateIssue" {
			created++
			if created == 2 {
				return errors.New("quota exceeded")
			}
		}
		return nil
	}

	summary, err := (&Engine{Source: src, Dest: dest, Logger: discardLogger()}).Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, summary)
	require.NotNil(t, summary.Import)
	assert.Equal(t, 1, summary.Import.Created)
	assert.Equal(t, map[string]string{"P-1": "P-1"}, summary.Import.Keys)
}

func TestEngineDryRun(t *testing.T) {
	src := newFakeSource(types.Project{Key: "P"})
	src.add("P", rawIssue("P-1", "a"))
	dest := testutil.NewFakeDestination()

	summary, err := (&Engine{Source: src, Dest: dest, DryRun: true, Logger: discardLogger()}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Import.Created)
	assert.Empty(t, dest.Issues())
	assert.False(t, dest.HasQueue("P"))
}

func TestEngineAppliesExtractOptions(t *testing.T) {
	src := newFakeSource(types.Project{Key: "A"}, types.Project{Key: "B"})
	src.add("A", rawIssue("A-1", "a"))
	src.add("B", rawIssue("B-1", "b"))
	dest := testutil.NewFakeDestination()

	engine := &Engine{
		Source:  src,
		Dest:    dest,
		Logger:  discardLogger(),
		Extract: ExtractOptions{ProjectFilter: []string{"B"}, PageSize: 7},
	}
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Extracted)
	assert.True(t, dest.HasQueue("B"))
	assert.False(t, dest.HasQueue("A"))
	assert.Equal(t, 7, src.requestsFor("B")[0].Size)
}
