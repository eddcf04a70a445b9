package models

// Trade represents one logged execution.
type Trade struct {
	ID                  string    `json:"id" yaml:"id"`
	Date                string    `json:"date" yaml:"date"` // day of month, e.g. "15"
	Pair                string    `json:"pair" yaml:"pair"`
	Direction           Direction `json:"direction" yaml:"direction"`
	RR                  float64   `json:"rr" yaml:"rr"`
	Result              Result    `json:"result" yaml:"result"`
	Pips                float64   `json:"pips" yaml:"pips"`
	PnLPercent          float64   `json:"pnlPercent" yaml:"pnlPercent"`
	MaxExcursionPercent float64   `json:"maxExcursionPercent" yaml:"maxExcursionPercent"`
	Notes               string    `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// MonthData represents one trading period within a strategy.
type MonthData struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"` // display label, e.g. "March 2024"
	Trades     []Trade `json:"trades" yaml:"trades"`
	Notes      string  `json:"notes,omitempty" yaml:"notes,omitempty"`
	AIAnalysis *string `json:"aiAnalysis,omitempty" yaml:"aiAnalysis,omitempty"`
}

// FindTrade returns the trade with the given id.
func (m *MonthData) FindTrade(id string) (*Trade, bool) {
	for i := range m.Trades {
		if m.Trades[i].ID == id {
			return &m.Trades[i], true
		}
	}
	return nil, false
}

// Strategy groups trading periods under a name.
type Strategy struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Notes  string      `json:"notes,omitempty" yaml:"notes,omitempty"`
	Months []MonthData `json:"months" yaml:"months"`
}

// FindMonth returns the month with the given id.
func (s *Strategy) FindMonth(id string) (*MonthData, bool) {
	for i := range s.Months {
		if s.Months[i].ID == id {
			return &s.Months[i], true
		}
	}
	return nil, false
}
