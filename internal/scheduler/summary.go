package scheduler

// Disposition is what happened to one item in a run.
type Disposition string

const (
	DispositionPosted   Disposition = "posted"
	DispositionFailed   Disposition = "failed"
	DispositionDeferred Disposition = "deferred"
	DispositionSkipped  Disposition = "skipped"
)

// ItemResult reports one visited item.
type ItemResult struct {
	ItemID      string      `json:"item_id"`
	Title       string      `json:"title"`
	ParentID    string      `json:"parent_id,omitempty"`
	Disposition Disposition `json:"disposition"`
	ReplyTo     string      `json:"reply_to,omitempty"`
	ExternalID  string      `json:"external_id,omitempty"`
	Error       string      `json:"error,omitempty"`

	Err error `json:"-"`
}

func (r *ItemResult) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}

// Summary reports one run.
type Summary struct {
	RunID    string       `json:"run_id,omitempty"`
	Due      int          `json:"due"`
	Posted   int          `json:"posted"`
	Failed   int          `json:"failed"`
	Deferred int          `json:"deferred"`
	Skipped  int          `json:"skipped"`
	Results  []ItemResult `json:"results"`
}

// Processed counts items that reached a terminal status in this run.
func (s Summary) Processed() int {
	return s.Posted + s.Failed
}

func (s *Summary) add(r ItemResult) {
	switch r.Disposition {
	case DispositionPosted:
		s.Posted++
	case DispositionFailed:
		s.Failed++
	case DispositionDeferred:
		s.Deferred++
	case DispositionSkipped:
		s.Skipped++
	}
	s.Results = append(s.Results, r)
}
