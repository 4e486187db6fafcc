package present

import "github.com/alanyoungcy/tontine/internal/domain"

// StatusLabel names a group status; unknown statuses are shown verbatim.
func StatusLabel(s domain.GroupStatus) string {
	switch s {
	case domain.GroupActive:
		return "Active"
	case domain.GroupPending:
		return "En attente"
	case domain.GroupCompleted:
		return "Terminée"
	case domain.GroupCancelled:
		return "Annulée"
	default:
		return string(s)
	}
}

// FrequencyLabel names a contribution frequency, defaulting to monthly.
func FrequencyLabel(f domain.Frequency) string {
	switch f {
	case domain.FrequencyDaily:
		return "Quotidienne"
	case domain.FrequencyWeekly:
		return "Hebdomadaire"
	default:
		return "Mensuelle"
	}
}

// RoundStatusLabel names a round status.
func RoundStatusLabel(s domain.RoundStatus) string {
	if s == domain.RoundCompleted {
		return "Terminé"
	}
	return "En attente"
}
