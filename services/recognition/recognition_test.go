package recognition

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/rollcall/core/attendance"
	appfs "github.com/trezcool/rollcall/fs"
)

var testImage = attendance.Image{ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}

func TestLoadCandidates(t *testing.T) {
	cands, err := LoadCandidates(appfs.FS, appfs.FixturesDir+"/recognition.yaml")
	require.NoError(t, err)
	require.Len(t, cands, 5)
	assert.Equal(t, "John Doe", cands[0].Name)
	assert.Equal(t, "ST1001", cands[0].StudentID)
	assert.Equal(t, 0.95, cands[0].Confidence)

	sum := attendance.Summarize(attendance.ClassifyAll(cands))
	assert.Equal(t, attendance.Summary{Total: 5, Matched: 3, LowConfidence: 1, Unmatched: 1}, sum)

	_, err = LoadCandidates(appfs.FS, "nope.yaml")
	assert.Error(t, err)
}

func TestMock_Recognize(t *testing.T) {
	cands := []attendance.Candidate{{Identity: attendance.Identity{Name: "Jane Smith", StudentID: "ST1002"}, Confidence: 0.98}}

	t.Run("success", func(t *testing.T) {
		got, err := NewMock(0, cands).Recognize(context.Background(), testImage, 1)
		require.NoError(t, err)
		assert.Equal(t, cands, got)

		got[0].Name = "changed"
		again, err := NewMock(0, cands).Recognize(context.Background(), testImage, 1)
		require.NoError(t, err)
		assert.Equal(t, "Jane Smith", again[0].Name)
	})

	t.Run("empty image", func(t *testing.T) {
		_, err := NewMock(0, cands).Recognize(context.Background(), attendance.Image{}, 1)
		assert.Equal(t, ErrEmptyImage, err)
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := NewMock(time.Minute, cands).Recognize(ctx, testImage, 1)
		assert.Equal(t, context.DeadlineExceeded, err)
	})
}

func TestClient_Recognize(t *testing.T) {
	var got recognizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/recognize", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.ClassID == 99 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("model offline"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"name":"Bob Johnson","student_id":"ST1003","confidence":0.72}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second)

	cands, err := client.Recognize(context.Background(), testImage, 3)
	require.NoError(t, err)
	assert.Equal(t, testImage.DataURL(), got.Image)
	assert.Equal(t, 3, got.ClassID)
	require.Len(t, cands, 1)
	assert.Equal(t, "ST1003", cands[0].StudentID)
	assert.Equal(t, attendance.StatusLowConfidence, attendance.Classify(cands[0].Confidence))

	_, err = client.Recognize(context.Background(), testImage, 99)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "502")
	}

	_, err = client.Recognize(context.Background(), attendance.Image{}, 3)
	assert.Equal(t, ErrEmptyImage, err)
}
