package backtest

// Aggregate summarizes rows. Probabilities are percentages of all rows;
// AverageRecoveryDays averages only loss rows that recovered and is 0 when
// none did.
func Aggregate(rows []Row) (Stats, error) {
	if len(rows) == 0 {
		return Stats{}, &EmptyResultSetError{}
	}

	var safe, positive, losses, stuck, recovered, recoverySum int
	for _, r := range rows {
		if r.FinalPrice > r.StartPrice {
			positive++
		}
		if r.Outcome != OutcomeLoss {
			safe++
			continue
		}
		losses++
		if r.Stuck {
			stuck++
		}
		if r.RecoveryDays != nil {
			recovered++
			recoverySum += *r.RecoveryDays
		}
	}

	total := float64(len(rows))
	stats := Stats{
		TotalPeriods:              len(rows),
		SafetyProbability:         float64(safe) / total * 100,
		PositiveReturnProbability: float64(positive) / total * 100,
		LossCount:                 losses,
		StuckCount:                stuck,
	}
	stats.LossProbability = 100 - stats.SafetyProbability

	if losses > 0 {
		stats.StuckRate = float64(stuck) / float64(losses) * 100
	}
	if recovered > 0 {
		stats.AverageRecoveryDays = float64(recoverySum) / float64(recovered)
	}

	return stats, nil
}
