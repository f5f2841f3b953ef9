package primaryserver

import (
	"sync"

	"github.com/jacokyle01/chess-lab/models"
)

const maxReports = 32

// ReportStore keeps finished review reports by id. The oldest report is
// evicted once maxReports is reached.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]models.ReviewReport
	order   []string
}

func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[string]models.ReviewReport)}
}

// Put stores a finished report.
func (s *ReportStore) Put(rep models.ReviewReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[rep.ID]; !exists {
		s.order = append(s.order, rep.ID)
	}
	s.reports[rep.ID] = rep

	for len(s.order) > maxReports {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}
}

// Get retrieves a report by review id.
func (s *ReportStore) Get(id string) (models.ReviewReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rep, exists := s.reports[id]
	return rep, exists
}

// Len returns the number of stored reports.
func (s *ReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}
