package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fiction-server/internal/domain"

	"go.uber.org/zap"
)

// Generator - провайдер генерации текста.
type Generator interface {
	// Generate возвращает сгенерированный текст без окружающих пробелов.
	Generate(ctx context.Context, prompt string) (string, error)
}

// EngineConfig содержит параметры автомата истории.
type EngineConfig struct {
	StepLimit         int
	EndedChoicePolicy domain.EndedChoicePolicy
}

// NarrativeEngine продвигает историю на один ход: записывает выбор, строит промпт,
// вызывает провайдера и дописывает результат в журнал.
type NarrativeEngine struct {
	generator Generator
	stepLimit int
	policy    domain.EndedChoicePolicy
	logger    *zap.Logger
}

// NewNarrativeEngine создает движок. Нулевой лимит заменяется domain.DefaultStepLimit.
func NewNarrativeEngine(generator Generator, cfg EngineConfig, logger *zap.Logger) *NarrativeEngine {
	if cfg.StepLimit <= 0 {
		cfg.StepLimit = domain.DefaultStepLimit
	}
	if cfg.EndedChoicePolicy == "" {
		cfg.EndedChoicePolicy = domain.EndedChoiceReject
	}
	return &NarrativeEngine{
		generator: generator,
		stepLimit: cfg.StepLimit,
		policy:    cfg.EndedChoicePolicy,
		logger:    logger.Named("NarrativeEngine"),
	}
}

// StepLimit возвращает порог завершения истории.
func (e *NarrativeEngine) StepLimit() int {
	return e.stepLimit
}

// Phase возвращает фазу истории по текущему числу шагов.
func (e *NarrativeEngine) Phase(state domain.StoryState) domain.Phase {
	return domain.PhaseFor(state.Steps, e.stepLimit)
}

// BuildPrompt строит промпт по состоянию, в котором выбор текущего хода уже записан.
// Результат зависит только от журнала и числа шагов.
func (e *NarrativeEngine) BuildPrompt(state domain.StoryState) string {
	history := HistoryText(state.Log)
	if e.Phase(state) == domain.PhaseEnded {
		return endingPrompt(state.Steps, history)
	}
	return continuationPrompt(history)
}

// Advance выполняет один ход. Входное состояние не изменяется.
// При ошибке генерации возвращается исходное состояние и ошибка domain.ErrGenerationFailure,
// так что записанный в этом ходе выбор не должен сохраняться.
func (e *NarrativeEngine) Advance(ctx context.Context, state domain.StoryState, choice string) (domain.StoryState, error) {
	choice = strings.TrimSpace(choice)
	log := e.logger.With(zap.Int("steps", state.Steps), zap.Bool("hasChoice", choice != ""))

	if e.Phase(state) == domain.PhaseEnded && e.policy == domain.EndedChoiceReject {
		log.Info("Turn rejected: story already ended")
		return state, domain.ErrStoryEnded
	}

	next := state.Clone()
	if choice != "" {
		next.Log = append(next.Log, domain.Choice(choice))
		next.Steps++
	}

	phase := e.Phase(next)
	prompt := e.BuildPrompt(next)
	log.Debug("Prompt built", zap.String("phase", string(phase)), zap.Int("promptBytes", len(prompt)))

	output, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		log.Warn("Generation failed, turn discarded", zap.Error(err))
		if !errors.Is(err, domain.ErrGenerationFailure) {
			err = fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
		}
		return state, err
	}

	next.Log = append(next.Log, domain.Story(output))
	log.Info("Turn advanced", zap.Int("newSteps", next.Steps), zap.String("phase", string(phase)))
	return next, nil
}
