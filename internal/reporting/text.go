package reporting

import (
	"fmt"
	"strings"
)

// RenderTransactionsText renders records for the console, one line per
// record, newest first.
func RenderTransactionsText(r *TransactionsReport) string {
	if len(r.Records) == 0 {
		return "no transactions\n"
	}

	var sb strings.Builder
	for _, rec := range r.Records {
		status := "ok"
		if !rec.Successful {
			status = "FAILED"
		}
		sb.WriteString(fmt.Sprintf("#%-5d %s  %-25s %-14s %-7s %s\n",
			rec.ID,
			rec.Timestamp.Format(timestampLayout),
			rec.Type,
			rec.ChainID,
			status,
			rec.TxHash,
		))
		if in := flowText(rec.InputTokenName, rec.InputAmount.String(), rec.SecondInputTokenName, rec.SecondInputAmount.String()); in != "" {
			sb.WriteString("       in:  " + in + "\n")
		}
		if out := flowText(rec.OutputTokenName, rec.OutputAmount.String(), rec.SecondOutputTokenName, rec.SecondOutputAmount.String()); out != "" {
			sb.WriteString("       out: " + out + "\n")
		}
		if rec.Error != "" {
			sb.WriteString("       err: " + rec.Error + "\n")
		}
	}
	return sb.String()
}

func flowText(name1, amount1, name2, amount2 string) string {
	var parts []string
	if name1 != "" {
		parts = append(parts, amount1+" "+name1)
	}
	if name2 != "" {
		parts = append(parts, amount2+" "+name2)
	}
	return strings.Join(parts, ", ")
}

// RenderProfitText renders net flows for the console.
func RenderProfitText(r *ProfitReport) string {
	if len(r.Flows) == 0 {
		return "no successful transactions in range\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-10s %15s %15s %12s %15s\n", "token", "inflow", "outflow", "gas", "net"))
	for _, f := range r.Flows {
		sb.WriteString(fmt.Sprintf("%-10s %15s %15s %12s %15s\n",
			f.TokenName, f.Inflow.String(), f.Outflow.String(), f.GasSpent.String(), f.Net.String()))
	}
	return sb.String()
}

// RenderVolumeText renders volumes for the console.
func RenderVolumeText(r *VolumeReport) string {
	if len(r.Volumes) == 0 {
		return "no transactions in range\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-28s %-10s %8s %15s\n", "type", "token", "count", "volume"))
	for _, v := range r.Volumes {
		sb.WriteString(fmt.Sprintf("%-28s %-10s %8d %15s\n",
			v.Type, v.TokenName, v.Count, v.Volume.String()))
	}
	return sb.String()
}

// RenderStatsText renders ledger stats for the console.
func RenderStatsText(r *StatsReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("total:      %d\n", r.Stats.Total))
	sb.WriteString(fmt.Sprintf("successful: %d\n", r.Stats.Successful))
	sb.WriteString(fmt.Sprintf("failed:     %d\n", r.Stats.Failed))
	for _, t := range sortedTypes(r.Stats.ByType) {
		sb.WriteString(fmt.Sprintf("  %-28s %d\n", t, r.Stats.ByType[t]))
	}
	if !r.Stats.First.IsZero() {
		sb.WriteString(fmt.Sprintf("first:      %s\n", r.Stats.First.Format(timestampLayout)))
		sb.WriteString(fmt.Sprintf("last:       %s\n", r.Stats.Last.Format(timestampLayout)))
	}
	return sb.String()
}
