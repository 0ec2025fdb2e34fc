package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presensure/internal/attendance"
	"presensure/internal/faceclient"
)

func TestParseRange(t *testing.T) {
	r, err := ParseRange(" 80 - 99 ")
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 80, Max: 99}, r)

	for _, bad := range []string{"", "90", "a-b", "97-92", "-1-50", "50-101"} {
		_, err := ParseRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestRandomStaysInRange(t *testing.T) {
	p := NewRandom(DefaultFaceRange, DefaultVoiceRange)
	for i := 0; i < 200; i++ {
		sc, err := p.Score(context.Background(), attendance.CheckIn{StudentID: "S1001"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sc.Face, 92)
		assert.LessOrEqual(t, sc.Face, 97)
		assert.GreaterOrEqual(t, sc.Voice, 90)
		assert.LessOrEqual(t, sc.Voice, 97)
	}
}

func TestRandomSinglePointRange(t *testing.T) {
	p := NewRandom(Range{Min: 95, Max: 95}, Range{Min: 91, Max: 91})
	sc, err := p.Score(context.Background(), attendance.CheckIn{})
	require.NoError(t, err)
	assert.Equal(t, attendance.Scores{Face: 95, Voice: 91}, sc)
}

type stubVerifier struct {
	res   *faceclient.VerifyResult
	err   error
	calls int
}

func (s *stubVerifier) Verify(context.Context, string, string) (*faceclient.VerifyResult, error) {
	s.calls++
	return s.res, s.err
}

func TestFaceServiceUsesSimilarity(t *testing.T) {
	v := &stubVerifier{res: &faceclient.VerifyResult{Similarity: 0.876}}
	p := NewFaceService(v, NewRandom(Range{Min: 93, Max: 93}, Range{Min: 90, Max: 90}))

	sc, err := p.Score(context.Background(), attendance.CheckIn{StudentID: "S1001", SnapshotURL: "https://img/1.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 88, sc.Face)
	assert.Equal(t, 90, sc.Voice)
	assert.Equal(t, 1, v.calls)
}

func TestFaceServiceFallsBack(t *testing.T) {
	v := &stubVerifier{err: errors.New("connection refused")}
	p := NewFaceService(v, NewRandom(Range{Min: 93, Max: 93}, Range{Min: 90, Max: 90}))

	sc, err := p.Score(context.Background(), attendance.CheckIn{StudentID: "S1001", SnapshotURL: "https://img/1.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 93, sc.Face)

	sc, err = p.Score(context.Background(), attendance.CheckIn{StudentID: "S1001"})
	require.NoError(t, err)
	assert.Equal(t, 93, sc.Face)
	assert.Equal(t, 1, v.calls, "no snapshot means no verify call")
}
