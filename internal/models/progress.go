package models

// ExportProgress is emitted after every completed unit of work. Total is
// fixed once a run starts.
type ExportProgress struct {
	Current     int
	Total       int
	CurrentItem string
}

// Percentage returns completion in [0,1], 0 when Total is zero.
func (p ExportProgress) Percentage() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total)
}
