package trainer_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/trainhub/internal/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamServer(t *testing.T, lines []string, gotReq *trainer.StreamRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/training/stream", r.URL.Path)
		if gotReq != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(gotReq))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
}

func testRequest() trainer.StreamRequest {
	return trainer.StreamRequest{
		KnowledgeBaseID: "12",
		VersionID:       "34",
		Files: []trainer.FileRef{
			{ID: "1", Name: "report.pdf", Path: "/data/report.pdf", MimeType: "application/pdf", Size: 2048},
		},
		JobID:     "training_12_34_job_1",
		JobIndex:  1,
		TotalJobs: 2,
	}
}

func TestStream_RelaysEventsInOrder(t *testing.T) {
	lines := []string{
		`data: {"type":"progress","current_file":1,"total_files":2,"percentage":0,"status":"processing","current_file_name":"report.pdf"}`,
		``,
		`data: {"type":"progress","current_file":1,"total_files":2,"current_chunk":3,"total_chunks":10,"percentage":15,"status":"embedding"}`,
		``,
		`data: {"type":"complete","status":"completed","percentage":100}`,
	}
	var gotReq trainer.StreamRequest
	srv := streamServer(t, lines, &gotReq)
	defer srv.Close()

	c := trainer.NewHTTPClient(srv.URL, trainer.DBParams{Host: "db", Port: "5432", Name: "trainhub"})

	var events []trainer.StreamEvent
	err := c.Stream(context.Background(), testRequest(), func(ev trainer.StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Len(t, events, 2, "terminal complete event must not be emitted")
	assert.Equal(t, "processing", events[0].Status)
	assert.Equal(t, "embedding", events[1].Status)
	assert.Equal(t, 3, events[1].CurrentChunk)
	assert.Equal(t, 10, events[1].TotalChunks)

	// The client injects its own store connection parameters.
	assert.Equal(t, "db", gotReq.DBConfig.Host)
	assert.Equal(t, "trainhub", gotReq.DBConfig.Name)
	assert.Equal(t, "training_12_34_job_1", gotReq.JobID)
	assert.Equal(t, 1, gotReq.JobIndex)
	assert.Equal(t, 2, gotReq.TotalJobs)
}

func TestStream_BackendErrorEvent(t *testing.T) {
	lines := []string{
		`data: {"type":"progress","status":"processing"}`,
		`data: {"type":"error","message":"failed to parse report.pdf"}`,
		`data: {"type":"progress","status":"processing"}`,
	}
	srv := streamServer(t, lines, nil)
	defer srv.Close()

	c := trainer.NewHTTPClient(srv.URL, trainer.DBParams{})

	var emitted int
	err := c.Stream(context.Background(), testRequest(), func(trainer.StreamEvent) {
		emitted++
	})
	require.ErrorIs(t, err, trainer.ErrTrainingFailed)
	assert.Contains(t, err.Error(), "failed to parse report.pdf")
	assert.Equal(t, 1, emitted, "events after the error must not be emitted")
}

func TestStream_SkipsMalformedAndNonDataLines(t *testing.T) {
	lines := []string{
		`: keepalive comment`,
		`data: {this is not json`,
		`event: progress`,
		`data: {"type":"progress","status":"storing","percentage":50}`,
		`data: {"type":"complete"}`,
	}
	srv := streamServer(t, lines, nil)
	defer srv.Close()

	c := trainer.NewHTTPClient(srv.URL, trainer.DBParams{})

	var events []trainer.StreamEvent
	err := c.Stream(context.Background(), testRequest(), func(ev trainer.StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "storing", events[0].Status)
	assert.Equal(t, 50, events[0].Percentage)
}

func TestStream_MissingTypeDefaultsToProgress(t *testing.T) {
	lines := []string{
		`data: {"status":"processing","percentage":10}`,
		`data: {"type":"complete"}`,
	}
	srv := streamServer(t, lines, nil)
	defer srv.Close()

	c := trainer.NewHTTPClient(srv.URL, trainer.DBParams{})

	var events []trainer.StreamEvent
	err := c.Stream(context.Background(), testRequest(), func(ev trainer.StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, trainer.EventProgress, events[0].EventType())
}

func TestStream_Non200Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := trainer.NewHTTPClient(srv.URL, trainer.DBParams{})

	err := c.Stream(context.Background(), testRequest(), func(trainer.StreamEvent) {
		t.Fatal("no events expected")
	})
	require.ErrorIs(t, err, trainer.ErrTrainerStatus)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestStream_Unreachable(t *testing.T) {
	c := trainer.NewHTTPClient("http://127.0.0.1:1", trainer.DBParams{})

	err := c.Stream(context.Background(), testRequest(), func(trainer.StreamEvent) {})
	require.ErrorIs(t, err, trainer.ErrTrainerUnreachable)
}

func TestStream_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := streamServer(t, nil, nil)
	defer srv.Close()

	c := trainer.NewHTTPClient(srv.URL, trainer.DBParams{})
	err := c.Stream(ctx, testRequest(), func(trainer.StreamEvent) {})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEventProgressMapping(t *testing.T) {
	ev := trainer.StreamEvent{
		CurrentFile:     2,
		TotalFiles:      5,
		CurrentChunk:    7,
		TotalChunks:     20,
		Percentage:      42,
		Status:          "embedding",
		Message:         "Creating embedding for chunk 7/20",
		CurrentFileName: "notes.md",
	}

	p := ev.Progress("ch_job_2", 2, 3)
	assert.Equal(t, 2, p.CurrentFile)
	assert.Equal(t, 20, p.TotalChunks)
	assert.Equal(t, 42, p.Percentage)
	assert.Equal(t, "embedding", p.Status)
	assert.Equal(t, "ch_job_2", p.JobID)
	assert.Equal(t, 2, p.JobIndex)
	assert.Equal(t, 3, p.TotalJobs)
}
