package validation

import "github.com/alanyoungcy/tontine/internal/domain"

// Field names shared by the forms and their HTTP payloads.
const (
	FieldFullName        = "fullName"
	FieldEmail           = "email"
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldAcceptTerms     = "acceptTerms"

	FieldName            = "name"
	FieldDescription     = "description"
	FieldAmountPerMember = "amount_per_member"
	FieldMaxMembers      = "max_members"
	FieldFrequency       = "frequency"
	FieldAutoApprove     = "auto_approve"
	FieldPublic          = "public"
)

// Registration returns the rules of the sign-up form.
func Registration() *Engine {
	return NewEngine().
		Register(FieldFullName, FullName("Le nom complet doit contenir au moins 2 caractères")).
		Register(FieldEmail, Email("Veuillez entrer un email valide")).
		Register(FieldPhone, Phone("Veuillez entrer un numéro de téléphone valide")).
		Register(FieldPassword, MinLength(8, "Le mot de passe doit contenir au moins 8 caractères")).
		Register(FieldConfirmPassword, Matches(FieldPassword, "Les mots de passe ne correspondent pas")).
		Register(FieldAcceptTerms, Checked("Vous devez accepter les conditions")).
		DependsOn(FieldConfirmPassword, FieldPassword)
}

// Login returns the rules of the sign-in form.
func Login() *Engine {
	return NewEngine().
		Register(FieldEmail, Email("Veuillez entrer un email valide")).
		Register(FieldPassword, Required("Veuillez entrer votre mot de passe"))
}

// CreateTontine returns the rules of the tontine creation form. Description
// and the two checkboxes carry no rule.
func CreateTontine() *Engine {
	return NewEngine().
		Register(FieldName, Required("Le nom de la tontine est requis")).
		Register(FieldAmountPerMember, PositiveNumber("Veuillez entrer un montant valide")).
		Register(FieldMaxMembers, MinInt(2, "Une tontine doit compter au moins 2 membres")).
		Register(FieldFrequency, OneOf("Veuillez choisir une fréquence",
			string(domain.FrequencyDaily),
			string(domain.FrequencyWeekly),
			string(domain.FrequencyMonthly),
		))
}
