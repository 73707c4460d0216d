package game

import "rps-tracker/internal/domain"

// beats maps each choice to the one it defeats.
var beats = map[domain.Choice]domain.Choice{
	domain.Rock:     domain.Scissors,
	domain.Paper:    domain.Rock,
	domain.Scissors: domain.Paper,
}

// Resolve decides a round from the player's perspective.
func Resolve(player, computer domain.Choice) domain.Result {
	switch {
	case player == computer:
		return domain.Tie
	case beats[player] == computer:
		return domain.Win
	default:
		return domain.Loss
	}
}
