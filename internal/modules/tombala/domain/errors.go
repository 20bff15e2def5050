package domain

import (
	"errors"
)

// ContractError is a revert raised by a lifecycle rule. Name is the
// identifier clients switch on, e.g. "NumberAlreadyTaken".
type ContractError struct {
	Name string
}

func (e *ContractError) Error() string {
	return e.Name
}

var (
	ErrInvalidNumber              = &ContractError{Name: "InvalidNumber"}
	ErrIncorrectBetAmount         = &ContractError{Name: "IncorrectBetAmount"}
	ErrNumberAlreadyTaken         = &ContractError{Name: "NumberAlreadyTaken"}
	ErrPlayerAlreadyBet           = &ContractError{Name: "PlayerAlreadyBet"}
	ErrGameStillActive            = &ContractError{Name: "GameStillActive"}
	ErrNoNumbersToDrawFrom        = &ContractError{Name: "NoNumbersToDrawFrom"}
	ErrOwnableUnauthorizedAccount = &ContractError{Name: "OwnableUnauthorizedAccount"}
	ErrGameNotActive              = &ContractError{Name: "GameNotActive"}
	ErrGameAlreadyDrawn           = &ContractError{Name: "GameAlreadyDrawn"}
	ErrDrawPending                = &ContractError{Name: "DrawPending"}
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid wei amount")
)

// AsContractError unwraps err to a ContractError if it carries one
func AsContractError(err error) (*ContractError, bool) {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
