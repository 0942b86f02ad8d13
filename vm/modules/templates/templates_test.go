package templates

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/picwords/picchain/core"
	"github.com/picwords/picchain/events"
	"github.com/picwords/picchain/internal/testutil"
)

const t0 = int64(1_700_000_000)

func TestAddTemplate(t *testing.T) {
	env := testutil.NewEnv(t, 0)

	id := env.AddTemplate(t, "Secret Word", env.Params.MinReward, core.Medium, t0)
	require.EqualValues(t, 1, id)

	tmpl, err := env.State.GetTemplate(id)
	require.NoError(t, err)
	require.Equal(t, core.AnswerHash("secret word"), tmpl.AnswerHash)
	require.Equal(t, env.Params.MinReward, tmpl.BaseReward)
	require.Equal(t, core.Medium, tmpl.Difficulty)
	require.True(t, tmpl.Active)
	require.Equal(t, env.Owner.PubKey(), tmpl.Creator)
	require.Equal(t, t0, tmpl.CreatedAt)

	require.Len(t, env.EventsOfType(events.EventTemplateReg), 1)
}

func TestAddTemplateOwnerOnly(t *testing.T) {
	env := testutil.NewEnv(t, 0)
	stranger := env.NewWallet(t, 0)

	err := env.Run(t, stranger, core.TxAddTemplate, core.AddTemplatePayload{
		AnswerHash: core.AnswerHash("x"),
		BaseReward: env.Params.MinReward,
		Difficulty: core.Easy,
	}, t0)
	require.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestAddTemplateRewardBounds(t *testing.T) {
	env := testutil.NewEnv(t, 0)

	for _, reward := range []uint64{env.Params.MinReward - 1, env.Params.MaxReward + 1} {
		err := env.Run(t, env.Owner, core.TxAddTemplate, core.AddTemplatePayload{
			AnswerHash: core.AnswerHash("x"),
			BaseReward: reward,
			Difficulty: core.Easy,
		}, t0)
		require.ErrorIs(t, err, core.ErrRewardOutOfRange, "reward %d", reward)
	}

	// both bounds are inclusive
	for _, reward := range []uint64{env.Params.MinReward, env.Params.MaxReward} {
		err := env.Run(t, env.Owner, core.TxAddTemplate, core.AddTemplatePayload{
			AnswerHash: core.AnswerHash("x"),
			BaseReward: reward,
			Difficulty: core.Easy,
		}, t0)
		require.NoError(t, err, "reward %d", reward)
	}
}

func TestAddTemplateRejectsUnknownDifficulty(t *testing.T) {
	env := testutil.NewEnv(t, 0)
	err := env.Run(t, env.Owner, core.TxAddTemplate, core.AddTemplatePayload{
		AnswerHash: core.AnswerHash("x"),
		BaseReward: env.Params.MinReward,
		Difficulty: core.Difficulty(9),
	}, t0)
	require.Error(t, err)
}

func TestDeactivateTemplate(t *testing.T) {
	env := testutil.NewEnv(t, 0)
	id := env.AddTemplate(t, "x", env.Params.MinReward, core.Easy, t0)

	env.MustRun(t, env.Owner, core.TxDeactivateTemplate, core.DeactivateTemplatePayload{TemplateID: id}, t0+1)
	tmpl, err := env.State.GetTemplate(id)
	require.NoError(t, err)
	require.False(t, tmpl.Active)

	// repeat deactivation succeeds without change
	env.MustRun(t, env.Owner, core.TxDeactivateTemplate, core.DeactivateTemplatePayload{TemplateID: id}, t0+2)
	require.Len(t, env.EventsOfType(events.EventTemplateDeact), 1)

	// the id stays registered; soft delete only
	ids, err := env.State.TemplateIDs()
	require.NoError(t, err)
	require.Contains(t, ids, id)
}

func TestDeactivateTemplateErrors(t *testing.T) {
	env := testutil.NewEnv(t, 0)
	id := env.AddTemplate(t, "x", env.Params.MinReward, core.Easy, t0)

	stranger := env.NewWallet(t, 0)
	err := env.Run(t, stranger, core.TxDeactivateTemplate, core.DeactivateTemplatePayload{TemplateID: id}, t0+1)
	require.ErrorIs(t, err, core.ErrUnauthorized)

	err = env.Run(t, env.Owner, core.TxDeactivateTemplate, core.DeactivateTemplatePayload{TemplateID: 999}, t0+2)
	require.ErrorIs(t, err, core.ErrNotFound)
}
