package service

import (
	"sort"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
)

// DefaultPassMark is the percentage at or above which a mark passes.
const DefaultPassMark = 50.0

// Average is the arithmetic mean of values, zero for an empty set.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// PassRate is the share of marks at or above passMark, as a percentage.
func PassRate(marks []models.Mark, passMark float64) float64 {
	if len(marks) == 0 {
		return 0
	}
	passed := 0
	for _, m := range marks {
		if m.Percentage() >= passMark {
			passed++
		}
	}
	return float64(passed) / float64(len(marks)) * 100
}

// MarkAverage is the mean percentage across marks.
func MarkAverage(marks []models.Mark) float64 {
	values := make([]float64, len(marks))
	for i, m := range marks {
		values[i] = m.Percentage()
	}
	return Average(values)
}

// AverageBy groups marks by key and averages each group. Groups are sorted by key.
func AverageBy(marks []models.Mark, key func(models.Mark) string) []dto.GroupAverage {
	groups := make(map[string][]float64)
	for _, m := range marks {
		k := key(m)
		groups[k] = append(groups[k], m.Percentage())
	}
	out := make([]dto.GroupAverage, 0, len(groups))
	for k, values := range groups {
		out = append(out, dto.GroupAverage{Key: k, Average: Average(values), Count: len(values)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// AtRisk lists learners whose average percentage is below passMark, lowest first.
func AtRisk(marks []models.Mark, passMark float64) []dto.LearnerAverage {
	type acc struct {
		name   string
		values []float64
	}
	byLearner := make(map[string]*acc)
	for _, m := range marks {
		a, ok := byLearner[m.LearnerID]
		if !ok {
			a = &acc{name: m.LearnerName}
			byLearner[m.LearnerID] = a
		}
		a.values = append(a.values, m.Percentage())
	}
	out := make([]dto.LearnerAverage, 0)
	for id, a := range byLearner {
		avg := Average(a.values)
		if avg < passMark {
			out = append(out, dto.LearnerAverage{LearnerID: id, LearnerName: a.name, Average: avg})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Average == out[j].Average {
			return out[i].LearnerID < out[j].LearnerID
		}
		return out[i].Average < out[j].Average
	})
	return out
}

// CountRegistrations tallies registrations by status and role.
func CountRegistrations(regs []models.Registration) models.RegistrationCounts {
	counts := models.RegistrationCounts{
		ByStatus: make(map[models.RegistrationStatus]int),
		ByRole:   make(map[models.Role]int),
	}
	for _, r := range regs {
		counts.ByStatus[r.Status]++
		counts.ByRole[r.Role]++
		counts.Total++
	}
	return counts
}

func bySubject(m models.Mark) string { return m.Subject }
func byClass(m models.Mark) string   { return m.ClassName }
func byGrade(m models.Mark) string   { return m.Grade }
