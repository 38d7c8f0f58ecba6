package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// WriteCSV writes the recorded steps as a flat CSV table. Sector-keyed
// fields become one column per sector, in the recorder's sector order.
func WriteCSV(w io.Writer, r *Recorder) error {
	cw := csv.NewWriter(w)
	sectors := r.Sectors()

	header := []string{"date", "equity"}
	for _, group := range []string{"index_price", "portfolio_weight", "restructure_turnover", "rebalance_turnover"} {
		for _, s := range sectors {
			header = append(header, group+"."+s)
		}
	}
	header = append(header,
		"total_restructure_turnover", "restructure_commission",
		"total_rebalance_turnover", "rebalance_commission",
	)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range r.Records() {
		row := []string{rec.Date.Format("2006-01-02"), formatFloat(rec.Equity)}
		for _, m := range []map[string]float64{rec.IndexPrice, rec.PortfolioWeight, rec.RestructureTurnover, rec.RebalanceTurnover} {
			for _, s := range sectors {
				row = append(row, formatFloat(m[s]))
			}
		}
		row = append(row,
			formatFloat(rec.TotalRestructureTurnover), formatFloat(rec.RestructureCommission),
			formatFloat(rec.TotalRebalanceTurnover), formatFloat(rec.RebalanceCommission),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the recorded steps to a file path.
func WriteCSVFile(path string, r *Recorder) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, r); err != nil {
		return fmt.Errorf("write results file: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
