package domain

// Phase - состояние автомата истории.
type Phase string

const (
	PhaseOngoing Phase = "ongoing"
	PhaseEnded   Phase = "ended"
)

// PhaseFor вычисляет фазу по количеству шагов и лимиту.
func PhaseFor(steps, limit int) Phase {
	if steps >= limit {
		return PhaseEnded
	}
	return PhaseOngoing
}

// EndedChoicePolicy определяет, что делать с ходом по уже завершенной истории.
type EndedChoicePolicy string

const (
	// EndedChoiceReject отклоняет любой ход по завершенной истории.
	EndedChoiceReject EndedChoicePolicy = "reject"
	// EndedChoiceAccept записывает выбор и генерирует концовку заново, шаги растут дальше лимита.
	EndedChoiceAccept EndedChoicePolicy = "accept"
)

// ParseEndedChoicePolicy разбирает значение из конфигурации.
func ParseEndedChoicePolicy(v string) (EndedChoicePolicy, error) {
	switch EndedChoicePolicy(v) {
	case EndedChoiceReject, "":
		return EndedChoiceReject, nil
	case EndedChoiceAccept:
		return EndedChoiceAccept, nil
	}
	return "", ErrInvalidInput
}
