package journal

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

// BacktestRun is the summary row stored for each backtest.
type BacktestRun struct {
	RunID    string
	Created  time.Time
	Symbols  []string
	Interval string
	Dataset  string
	Strategy string

	Start time.Time
	End   time.Time

	StartBalance decimal.Decimal
	EndBalance   decimal.Decimal

	Trades int
	Wins   int
	Losses int

	// Percentages are in percent units (12.5 == 12.5%).
	WinRate      float64
	ProfitFactor float64
	Sharpe       float64
	MaxDDPct     float64
	ReturnPct    float64

	OrgPath string
	Notes   []string
}

// NetPL is EndBalance - StartBalance.
func (r BacktestRun) NetPL() decimal.Decimal {
	return r.EndBalance.Sub(r.StartBalance)
}

var backtestOrgFuncs = template.FuncMap{
	"join": strings.Join,
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Unix(0, 0).UTC()
		}
		return t
	},
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// RenderOrg renders the run as an Org-mode block.
func (r BacktestRun) RenderOrg() (string, error) {
	buf := new(bytes.Buffer)
	if err := backtestOrg.Execute(buf, r); err != nil {
		return "", fmt.Errorf("render backtest org: %w", err)
	}
	return buf.String(), nil
}

// WriteBacktestOrg writes the Org block to r.OrgPath.
func (r BacktestRun) WriteBacktestOrg() error {
	if r.OrgPath == "" {
		return fmt.Errorf("backtest %s: no org path", r.RunID)
	}
	s, err := r.RenderOrg()
	if err != nil {
		return err
	}
	return os.WriteFile(r.OrgPath, []byte(s), 0o644)
}

const BacktestOrgTemplate = `* BACKTEST: {{.Strategy}} {{join .Symbols ","}} {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:INTERVAL:    {{.Interval}}
:SYMBOLS:     {{join .Symbols ","}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_BAL:   {{.StartBalance.StringFixed 2}}
:END_BAL:     {{.EndBalance.StringFixed 2}}
:NET_PL:      {{.NetPL.StringFixed 2}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:PROFIT_FAC:  {{printf "%.2f" .ProfitFactor}}
:SHARPE:      {{printf "%.2f" .Sharpe}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Net P/L:          *{{.NetPL.StringFixed 2}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDDPct}}%*
- Win Rate:         *{{printf "%.2f" .WinRate}}%*
- Profit Factor:    *{{printf "%.2f" .ProfitFactor}}*
- Sharpe:           *{{printf "%.2f" .Sharpe}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
