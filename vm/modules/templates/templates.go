package templates

import (
	"encoding/json"
	"fmt"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/vm"
)

func init() {
	vm.Register(core.TxAddTemplate, handleAddTemplate)
	vm.Register(core.TxDeactivateTemplate, handleDeactivateTemplate)
}

func handleAddTemplate(ctx *vm.Context, payload json.RawMessage) error {
	var p core.AddTemplatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode add_template payload: %w", err)
	}

	params, err := ctx.State.GetParams()
	if err != nil {
		return fmt.Errorf("engine params: %w", err)
	}
	if ctx.Tx.From != params.Owner {
		return core.ErrUnauthorized
	}
	if p.AnswerHash == "" {
		return fmt.Errorf("answer_hash required")
	}
	if !p.Difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %d", p.Difficulty)
	}
	if p.BaseReward < params.MinReward || p.BaseReward > params.MaxReward {
		return fmt.Errorf("%w: base reward %d outside [%d, %d]",
			core.ErrRewardOutOfRange, p.BaseReward, params.MinReward, params.MaxReward)
	}

	id, err := ctx.State.NextTemplateID()
	if err != nil {
		return err
	}
	t := &core.GameTemplate{
		ID:         id,
		AnswerHash: p.AnswerHash,
		BaseReward: p.BaseReward,
		Difficulty: p.Difficulty,
		Active:     true,
		Creator:    ctx.Tx.From,
		CreatedAt:  ctx.Now(),
	}
	if err := ctx.State.SetTemplate(t); err != nil {
		return err
	}

	ids, err := ctx.State.TemplateIDs()
	if err != nil {
		return err
	}
	if err := ctx.State.SetTemplateIDs(append(ids, id)); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventTemplateReg,
		Data: map[string]any{
			"template_id": id,
			"base_reward": p.BaseReward,
			"difficulty":  uint8(p.Difficulty),
		},
	})
	return nil
}

// handleDeactivateTemplate soft-deletes a template. Deactivating an already
// inactive template succeeds without change so retried transactions stay
// harmless. Running rounds that referenced the template keep their snapshot
// of the answer hash and remain playable.
func handleDeactivateTemplate(ctx *vm.Context, payload json.RawMessage) error {
	var p core.DeactivateTemplatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode deactivate_template payload: %w", err)
	}

	params, err := ctx.State.GetParams()
	if err != nil {
		return fmt.Errorf("engine params: %w", err)
	}
	if ctx.Tx.From != params.Owner {
		return core.ErrUnauthorized
	}

	t, err := ctx.State.GetTemplate(p.TemplateID)
	if err != nil {
		return fmt.Errorf("template %d: %w", p.TemplateID, err)
	}
	if !t.Active {
		return nil
	}
	t.Active = false
	if err := ctx.State.SetTemplate(t); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventTemplateDeact,
		Data: map[string]any{"template_id": p.TemplateID},
	})
	return nil
}
