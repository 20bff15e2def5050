package usecase

import (
	"context"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
	"github.com/frankieli/base_tombala/pkg/logger"
)

// Trigger actions
const (
	ActionNone     = "none"
	ActionDraw     = "draw"
	ActionNewGame  = "new_game"
	ActionDrawNext = "draw_and_new_game"
)

// TriggerResult is the body returned by the cron endpoint
type TriggerResult struct {
	Message                string         `json:"message"`
	GameActive             bool           `json:"gameActive"`
	Action                 string         `json:"action"`
	GameID                 int64          `json:"gameId"`
	BetsCount              int            `json:"betsCount"`
	TransactionHash        string         `json:"transactionHash,omitempty"`
	NewGameTransactionHash string         `json:"newGameTransactionHash,omitempty"`
	WinningNumber          int            `json:"winningNumber,omitempty"`
	Winner                 domain.Address `json:"winner,omitempty"`
	Network                string         `json:"network"`
}

// RunDrawTrigger advances the lifecycle once the betting window has
// elapsed. Repeated calls are safe: state checks turn them into no-ops or
// contract errors.
func (uc *TombalaUseCase) RunDrawTrigger(ctx context.Context) (*TriggerResult, error) {
	stats := uc.stateMachine.Stats()
	result := &TriggerResult{
		GameID:    stats.GameID,
		BetsCount: stats.BetsCount,
		Network:   uc.network,
		Action:    ActionNone,
	}

	if stats.IsActive {
		result.Message = "Game is still active"
		result.GameActive = true
		return result, nil
	}

	game, _ := uc.stateMachine.CurrentGame()

	// Drawn earlier but the next game never opened.
	if game.Drawn {
		receipt, _, err := uc.StartNewGame(ctx)
		if err != nil {
			return nil, err
		}
		result.Message = "New game started"
		result.Action = ActionNewGame
		result.TransactionHash = receipt.TransactionHash
		result.GameActive = uc.stateMachine.IsGameActive()
		return result, nil
	}

	if len(uc.stateMachine.FilledNumbers()) == 0 {
		receipt, next, err := uc.StartNewGame(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx).
			Int64("expired_game_id", stats.GameID).
			Int64("game_id", next.GameID).
			Msg("⏭️ [Tombala] expired game had no bets, restarted")

		result.Message = "No bets placed, new game started"
		result.Action = ActionNewGame
		result.TransactionHash = receipt.TransactionHash
		result.GameActive = true
		return result, nil
	}

	receipt, record, err := uc.DrawWinner(ctx)
	if err != nil {
		return nil, err
	}
	result.Message = "Winner drawn"
	result.Action = ActionDraw
	result.TransactionHash = receipt.TransactionHash
	result.WinningNumber = record.WinningNumber
	result.Winner = record.Winner
	result.BetsCount = record.TotalBets

	if !uc.stateMachine.IsGameActive() {
		next, _, err := uc.StartNewGame(ctx)
		if err != nil {
			return nil, err
		}
		result.Message = "Winner drawn, new game started"
		result.Action = ActionDrawNext
		result.NewGameTransactionHash = next.TransactionHash
	}
	result.GameActive = uc.stateMachine.IsGameActive()

	logger.Info(ctx).
		Int64("game_id", record.GameID).
		Int("winning_number", record.WinningNumber).
		Str("winner", record.Winner.String()).
		Str("action", result.Action).
		Msg("⏰ [Tombala] draw trigger completed")

	return result, nil
}
