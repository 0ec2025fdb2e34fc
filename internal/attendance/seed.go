package attendance

import (
	"context"
	"log"
)

var demoStudents = []Student{
	{ID: "S1001", Name: "Ava Patel", ClassName: "CS101"},
	{ID: "S1002", Name: "Liam Chen", ClassName: "CS101"},
	{ID: "S1003", Name: "Noah Smith", ClassName: "CS102"},
}

// SeedDemo fills an empty store with a small demo roster and two records for today.
func (s *Service) SeedDemo(ctx context.Context) error {
	existing, err := s.store.ListStudents(ctx, StudentFilter{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, st := range demoStudents {
		if err := s.store.CreateStudent(ctx, st); err != nil {
			return err
		}
	}
	today := s.now().In(s.loc).Format(dateLayout)
	samples := []Record{
		{StudentID: "S1002", StudentName: "Liam Chen", Date: today, Time: "09:05:03", FaceMatch: 92, VoiceMatch: 90, Status: StatusPending},
		{StudentID: "S1001", StudentName: "Ava Patel", Date: today, Time: "09:01:12", FaceMatch: 97, VoiceMatch: 93, Status: StatusApproved},
	}
	for _, r := range samples {
		if _, err := s.store.CreateRecord(ctx, r); err != nil {
			return err
		}
	}
	log.Printf("seeded %d demo students", len(demoStudents))
	return nil
}
