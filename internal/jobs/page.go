package jobs

// Page is one page of job executions plus pagination metadata.
type Page struct {
	Rows          []Job `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// NewPage builds a Page, deriving TotalPages from total and size.
func NewPage(rows []Job, total int64, number, size int) Page {
	if rows == nil {
		rows = []Job{}
	}
	p := Page{Rows: rows, TotalElements: total, Number: number, Size: size}
	if size > 0 {
		p.TotalPages = int((total + int64(size) - 1) / int64(size))
	}
	return p
}

// Clone returns a deep copy of p.
func (p Page) Clone() Page {
	rows := make([]Job, len(p.Rows))
	for i, j := range p.Rows {
		rows[i] = j.Clone()
	}
	p.Rows = rows
	return p
}

// PageResult is a Page with the optional inline stats some backends return.
type PageResult struct {
	Page
	Stats *Stats `json:"stats,omitempty"`
}

// Stats holds execution counts per status bucket.
type Stats struct {
	All     int64 `json:"ALL"`
	Running int64 `json:"RUNNING"`
	Success int64 `json:"SUCCESS"`
	Failed  int64 `json:"FAILED"`
	Unknown int64 `json:"UNKNOWN"`
}

// Add counts one execution with status st.
func (s *Stats) Add(st Status) {
	s.All++
	switch st {
	case StatusRunning:
		s.Running++
	case StatusSuccess:
		s.Success++
	case StatusFailed:
		s.Failed++
	default:
		s.Unknown++
	}
}

// Count returns the count shown for tab t.
func (s Stats) Count(t Tab) int64 {
	switch t {
	case TabRunning:
		return s.Running
	case TabSuccess:
		return s.Success
	case TabFailed:
		return s.Failed
	}
	return s.All
}
