package project

import (
	"math/rand"
	"time"

	"github.com/davrk/stint/internal/models"
)

// sampleSlot places one demonstration commit relative to the start of the
// current week.
type sampleSlot struct {
	dayDelta int
	hour     int
	minute   int
}

var sampleSlots = []sampleSlot{
	{0, 9, 15},
	{0, 11, 45},
	{-1, 9, 20},
	{-1, 10, 24},
	{-1, 14, 36},
	{-2, 16, 30},
	{-2, 10, 0},
	{-3, 13, 15},
	{-5, 9, 30},
	{-7, 10, 45},
	{-8, 14, 20},
	{-10, 11, 10},
	{-12, 16, 5},
}

// SampleProjects generates the demonstration project used when no stored
// state exists: a fixed week-shaped structure of commits with pseudo-random
// amounts.
func SampleProjects() models.ProjectMap {
	now := time.Now()

	// Start of the current week (Monday, local time).
	offset := int(now.Weekday())
	if offset == 0 {
		offset = 7
	}
	weekStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -offset+1)

	p := &models.Project{
		Name:      "Sample Project",
		Commits:   make([]models.Commit, 0, len(sampleSlots)),
		CreatedAt: now.AddDate(0, 0, -14).UnixMilli(),
		UpdatedAt: now.UnixMilli(),
	}

	for _, slot := range sampleSlots {
		day := weekStart.AddDate(0, 0, slot.dayDelta)
		at := time.Date(day.Year(), day.Month(), day.Day(), slot.hour, slot.minute, 0, 0, day.Location())
		// 20..110 minutes in 5-minute steps.
		amount := int64(20 + rand.Intn(19)*5)
		p.Commits = append(p.Commits, models.Commit{
			CommittedAt: at.UnixMilli(),
			Amount:      amount,
		})
	}

	p.SortCommits()
	p.Time = p.CommitSum()

	budget := int64(2000)
	deadline := now.AddDate(0, 0, 14).UnixMilli()
	p.TimeBudget = &budget
	p.Deadline = &deadline

	return models.ProjectMap{p.Name: p}
}
