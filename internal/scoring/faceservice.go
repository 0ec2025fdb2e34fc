package scoring

import (
	"context"
	"log"
	"math"

	"presensure/internal/attendance"
	"presensure/internal/faceclient"
)

// Verifier is the part of the face service used for scoring.
type Verifier interface {
	Verify(ctx context.Context, userID, imageURL string) (*faceclient.VerifyResult, error)
}

// FaceService scores the face step against the enrolled gallery when the
// session captured a snapshot. Everything else comes from the fallback.
type FaceService struct {
	face     Verifier
	fallback attendance.ScoreProvider
}

// NewFaceService wraps a face-service client.
func NewFaceService(face Verifier, fallback attendance.ScoreProvider) *FaceService {
	return &FaceService{face: face, fallback: fallback}
}

func (p *FaceService) Score(ctx context.Context, in attendance.CheckIn) (attendance.Scores, error) {
	sc, err := p.fallback.Score(ctx, in)
	if err != nil {
		return attendance.Scores{}, err
	}
	if in.SnapshotURL == "" {
		return sc, nil
	}
	res, err := p.face.Verify(ctx, in.StudentID, in.SnapshotURL)
	if err != nil {
		log.Printf("warning: face verify for %s failed, keeping placeholder score: %v", in.StudentID, err)
		return sc, nil
	}
	sc.Face = int(math.Round(res.Similarity * 100))
	return sc, nil
}
