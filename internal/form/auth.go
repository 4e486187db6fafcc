package form

import (
	"context"
	"strings"

	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/gateway"
	"github.com/alanyoungcy/tontine/internal/validation"
)

var registrationFields = []string{
	validation.FieldFullName,
	validation.FieldEmail,
	validation.FieldPhone,
	validation.FieldPassword,
	validation.FieldConfirmPassword,
	validation.FieldAcceptTerms,
}

// NewRegistration builds the bound sign-up form.
func NewRegistration(deps Deps, opts ...Option) *Controller {
	opts = append([]Option{WithStrengthField(validation.FieldPassword), WithLogger(deps.logger())}, opts...)
	c := New(validation.Registration(), registerAction{deps: deps}, opts...)
	c.Bind(registrationFields...)
	return c
}

type registerAction struct{ deps Deps }

func (a registerAction) Submit(ctx context.Context, p Payload) (Success, error) {
	user, err := a.deps.Repo.Register(ctx, domain.Registration{
		Email:    p.String(validation.FieldEmail),
		Phone:    validation.StripSpaces(p.String(validation.FieldPhone)),
		FullName: p.String(validation.FieldFullName),
		Password: p.String(validation.FieldPassword),
	})
	if err != nil {
		return Success{}, err
	}
	a.deps.record(ctx, user.ID, domain.ActivityRegistration, "Compte créé", nil)
	return Success{
		Message: "Inscription réussie ! Vous pouvez vous connecter.",
		Next:    PageLogin,
		Delay:   a.deps.Delays.Register,
		Data:    user,
	}, nil
}

func (registerAction) Failure(err error) string {
	msg := gateway.Message(err, "Erreur lors de l'inscription")
	if strings.Contains(msg, "existe déjà") {
		return "Un utilisateur avec cet email ou téléphone existe déjà"
	}
	return msg
}

// NewLogin builds the bound sign-in form. An invalid submission shows the
// first field error rather than the generic message.
func NewLogin(deps Deps, opts ...Option) *Controller {
	opts = append([]Option{WithInvalidMessage(FirstError), WithLogger(deps.logger())}, opts...)
	c := New(validation.Login(), loginAction{deps: deps}, opts...)
	c.Bind(validation.FieldEmail, validation.FieldPassword)
	return c
}

type loginAction struct{ deps Deps }

func (a loginAction) Submit(ctx context.Context, p Payload) (Success, error) {
	res, err := a.deps.Repo.Login(ctx, domain.Credentials{
		Email:    p.String(validation.FieldEmail),
		Password: p.String(validation.FieldPassword),
	})
	if err != nil {
		return Success{}, err
	}

	var data any = res.User
	if a.deps.Sessions != nil {
		s, err := a.deps.Sessions.Begin(ctx, res)
		if err != nil {
			return Success{}, err
		}
		data = s
	}
	a.deps.record(ctx, res.User.ID, domain.ActivityLogin, "Connexion", nil)
	return Success{
		Message: "Connexion réussie !",
		Next:    PageDashboard,
		Delay:   a.deps.Delays.Login,
		Data:    data,
	}, nil
}

func (loginAction) Failure(err error) string {
	return gateway.Message(err, "Erreur de connexion")
}
