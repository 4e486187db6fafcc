package form

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/gateway"
	"github.com/alanyoungcy/tontine/internal/validation"
)

var tontineFields = []string{
	validation.FieldName,
	validation.FieldDescription,
	validation.FieldAmountPerMember,
	validation.FieldMaxMembers,
	validation.FieldFrequency,
	validation.FieldAutoApprove,
	validation.FieldPublic,
}

// NewCreateTontine builds the bound tontine creation form.
func NewCreateTontine(deps Deps, opts ...Option) *Controller {
	opts = append([]Option{WithLogger(deps.logger())}, opts...)
	c := New(validation.CreateTontine(), createTontineAction{deps: deps}, opts...)
	c.Bind(tontineFields...)
	return c
}

// GroupInput assembles the create/update payload from form fields.
func GroupInput(p Payload) domain.GroupInput {
	return domain.GroupInput{
		Name:            p.String(validation.FieldName),
		Description:     p.String(validation.FieldDescription),
		AmountPerMember: p.Float(validation.FieldAmountPerMember),
		MaxMembers:      p.Int(validation.FieldMaxMembers),
		Frequency:       domain.Frequency(p.String(validation.FieldFrequency)),
		AutoApprove:     p.Bool(validation.FieldAutoApprove),
		Public:          p.Bool(validation.FieldPublic),
	}
}

// NewUpdateTontine builds the edit form of tontine id. It shares the
// creation rules.
func NewUpdateTontine(deps Deps, id string, opts ...Option) *Controller {
	opts = append([]Option{WithLogger(deps.logger())}, opts...)
	c := New(validation.CreateTontine(), updateTontineAction{deps: deps, id: id}, opts...)
	c.Bind(tontineFields...)
	return c
}

type createTontineAction struct{ deps Deps }

func (a createTontineAction) Submit(ctx context.Context, p Payload) (Success, error) {
	g, err := a.deps.Repo.CreateGroup(ctx, GroupInput(p))
	if err != nil {
		return Success{}, err
	}
	a.deps.record(ctx, a.deps.userID(ctx), domain.ActivityTontineCreated,
		fmt.Sprintf("Tontine « %s » créée", g.Name),
		map[string]any{"tontine_id": g.ID},
	)
	return Success{
		Message: "Tontine créée avec succès !",
		Next:    PageTontines,
		Delay:   a.deps.Delays.Create,
		Data:    g,
	}, nil
}

func (createTontineAction) Failure(err error) string {
	return gateway.Message(err, "Erreur lors de la création de la tontine")
}

type updateTontineAction struct {
	deps Deps
	id   string
}

func (a updateTontineAction) Submit(ctx context.Context, p Payload) (Success, error) {
	g, err := a.deps.Repo.UpdateGroup(ctx, a.id, GroupInput(p))
	if err != nil {
		return Success{}, err
	}
	return Success{
		Message: "Tontine mise à jour avec succès",
		Next:    PageTontines,
		Delay:   a.deps.Delays.Create,
		Data:    g,
	}, nil
}

func (updateTontineAction) Failure(err error) string {
	return gateway.Message(err, "Erreur lors de la mise à jour de la tontine")
}

// DeleteTontine removes a tontine and reports the single message to show.
func DeleteTontine(ctx context.Context, deps Deps, id string) (Outcome, error) {
	if err := deps.Repo.DeleteGroup(ctx, id); err != nil {
		return Outcome{
			Message: Message{Kind: MessageError, Text: "Erreur lors de la suppression de la tontine"},
		}, fmt.Errorf("form: delete tontine %s: %w", id, err)
	}
	deps.record(ctx, deps.userID(ctx), domain.ActivityTontineDeleted, "Tontine supprimée",
		map[string]any{"tontine_id": id},
	)
	return Outcome{
		OK:      true,
		Message: Message{Kind: MessageSuccess, Text: "Tontine supprimée avec succès"},
		Next:    PageTontines,
	}, nil
}
