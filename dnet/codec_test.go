package dnet

import (
	"bytes"
	"io"
	"testing"

	"github.com/groundx/dscan/chainmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipe() (io.Reader, io.Writer) {
	pr, pw := io.Pipe()
	return pr, pw
}

func roundTrip(t *testing.T, m DMessage) DMessage {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewFrameWriter(&buf).WriteMessage(m))
	got, err := NewFrameReader(&buf).ReadMessage()
	require.NoError(t, err)
	return got
}

func TestCodecRoundTripRegisterWorker(t *testing.T) {
	m := RegisterWorkerMessage("worker-1")
	got := roundTrip(t, m)
	require.NotNil(t, got.RegisterWorker)
	assert.Equal(t, "worker-1", got.RegisterWorker.Name)
}

func TestCodecRoundTripTaskRequest(t *testing.T) {
	task := &chainmodel.Task{
		ID:      "abc123",
		Address: "addr1",
		Data: []chainmodel.SingleNote{
			{TxHash: "tx1", SerializedNote: []string{"n1", "n2"}},
		},
	}
	got := roundTrip(t, TaskRequestMessage(task))
	require.NotNil(t, got.TaskRequest)
	assert.Equal(t, task.ID, got.TaskRequest.ID)
	assert.Equal(t, task.Data, got.TaskRequest.Data)
}

func TestCodecRoundTripTaskResponseEmptyData(t *testing.T) {
	resp := &TaskResponse{ID: "abc123", Address: "addr1", Data: []string{}}
	got := roundTrip(t, TaskResponseMessage(resp))
	require.NotNil(t, got.TaskResponse)
	assert.Equal(t, []string{}, got.TaskResponse.Data)
}

func TestCodecPartialFrameResumesFromCursor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFrameWriter(&buf).WriteMessage(RegisterWorkerMessage("w1")))
	full := buf.Bytes()

	pr, pw := newPipe()
	reader := NewFrameReader(pr)
	done := make(chan DMessage, 1)
	errCh := make(chan error, 1)
	go func() {
		m, err := reader.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		done <- m
	}()

	// Write the frame in two pieces to exercise the cursor resumption path.
	mid := len(full) / 2
	_, _ = pw.Write(full[:mid])
	_, _ = pw.Write(full[mid:])

	select {
	case m := <-done:
		require.NotNil(t, m.RegisterWorker)
		assert.Equal(t, "w1", m.RegisterWorker.Name)
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCodecOversizeFrameRejected(t *testing.T) {
	big := make([]byte, MaxFrameSize+10)
	for i := range big {
		big[i] = 'a'
	}
	big = append(big, '\n')
	reader := NewFrameReader(bytes.NewReader(big))
	_, err := reader.ReadMessage()
	require.Error(t, err)
}

func TestCodecRejectsMultiVariantEnvelope(t *testing.T) {
	m := DMessage{
		RegisterWorker: &RegisterWorker{Name: "x"},
		TaskResponse:   &TaskResponse{ID: "1"},
	}
	_, err := marshalFrame(m)
	require.Error(t, err)
}
