// Package verdict turns a claim and its evidence set into a validated,
// harm-scored verdict.
package verdict

import "github.com/crisisguard/crisisguard/internal/model"

// DeriveAction maps (verdict, harm score) to a recommended action. The
// table is fixed policy, not model output: reasoning capability suggestions
// are ignored in favor of this mapping.
func DeriveAction(label model.VerdictLabel, harmScore int) model.RecommendedAction {
	harmScore = model.ClampHarm(harmScore)

	switch label {
	case model.VerdictFalse:
		if harmScore >= 70 {
			return model.ActionDebunk
		}
		return model.ActionMonitor

	case model.VerdictMisleading:
		if harmScore >= 50 {
			return model.ActionFlag
		}
		return model.ActionMonitor

	case model.VerdictPartiallyTrue:
		if harmScore >= 70 {
			return model.ActionFlag
		}
		return model.ActionMonitor

	case model.VerdictTrue:
		return model.ActionPublish

	case model.VerdictUnverified:
		return model.ActionMonitor

	default:
		return model.ActionMonitor
	}
}
