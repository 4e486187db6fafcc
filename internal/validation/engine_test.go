package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) bool
		in   string
		want bool
	}{
		{"email ok", IsEmail, "a@b.co", true},
		{"email no dot", IsEmail, "a@b", false},
		{"email empty", IsEmail, "", false},
		{"email two ats", IsEmail, "a@b@c.co", false},
		{"email space", IsEmail, "a b@c.co", false},
		{"phone international", IsPhone, "+237 6 99 99 99 99", true},
		{"phone dashes", IsPhone, "(237)-699-999", true},
		{"phone short after strip", IsPhone, "12 34 56 7", false},
		{"phone letters", IsPhone, "06abc12345", false},
		{"phone plus inside", IsPhone, "0699+99999", false},
		{"full name", IsFullName, "  Al  ", true},
		{"full name one char", IsFullName, " A ", false},
		{"full name accents", IsFullName, "Éa", true},
		{"required blank", IsRequired, "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}

func TestPasswordsMatch(t *testing.T) {
	assert.True(t, PasswordsMatch("", ""))
	assert.True(t, PasswordsMatch("Secret12", "Secret12"))
	assert.False(t, PasswordsMatch("Secret12", "secret12"))
}

func TestEngineUnregisteredFieldIsValid(t *testing.T) {
	e := NewEngine()
	got := e.Evaluate("nickname", TextValue(""), NewSnapshot(nil))
	assert.Equal(t, Result{Valid: true}, got)
}

func TestEngineTrimsBeforeRules(t *testing.T) {
	e := Registration()
	snap := NewSnapshot(nil)

	assert.True(t, e.Evaluate(FieldEmail, TextValue("  a@b.co  "), snap).Valid)
	assert.False(t, e.Evaluate(FieldPassword, TextValue("  short1  "), snap).Valid)
}

func TestRegistrationMessages(t *testing.T) {
	e := Registration()
	snap := NewSnapshot(map[string]Value{FieldPassword: TextValue("Secret123!")})

	tests := []struct {
		field string
		value Value
		want  Result
	}{
		{FieldFullName, TextValue("A"), Result{Error: "Le nom complet doit contenir au moins 2 caractères"}},
		{FieldEmail, TextValue("nope"), Result{Error: "Veuillez entrer un email valide"}},
		{FieldPhone, TextValue("12"), Result{Error: "Veuillez entrer un numéro de téléphone valide"}},
		{FieldPassword, TextValue("1234567"), Result{Error: "Le mot de passe doit contenir au moins 8 caractères"}},
		{FieldConfirmPassword, TextValue("Secret123"), Result{Error: "Les mots de passe ne correspondent pas"}},
		{FieldConfirmPassword, TextValue(" Secret123! "), Result{Valid: true}},
		{FieldAcceptTerms, CheckboxValue(false), Result{Error: "Vous devez accepter les conditions"}},
		{FieldAcceptTerms, CheckboxValue(true), Result{Valid: true}},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Evaluate(tt.field, tt.value, snap))
		})
	}
}

func TestRegistrationDependencies(t *testing.T) {
	e := Registration()
	assert.Equal(t, []string{FieldConfirmPassword}, e.Dependents(FieldPassword))
	assert.Empty(t, e.Dependents(FieldEmail))

	e.DependsOn(FieldConfirmPassword, FieldPassword)
	assert.Len(t, e.Dependents(FieldPassword), 1, "edges are not duplicated")
	assert.Equal(t, "passwordMatch", e.RuleName(FieldConfirmPassword))
}

func TestSnapshotIsACopy(t *testing.T) {
	values := map[string]Value{FieldPassword: TextValue("a")}
	snap := NewSnapshot(values)
	values[FieldPassword] = TextValue("b")
	assert.Equal(t, "a", snap.Get(FieldPassword).Text)
}

func TestLoginRules(t *testing.T) {
	e := Login()
	snap := NewSnapshot(nil)
	assert.Equal(t, "Veuillez entrer votre mot de passe", e.Evaluate(FieldPassword, TextValue("  "), snap).Error)
	assert.True(t, e.Evaluate(FieldPassword, TextValue("x"), snap).Valid)
	assert.Equal(t, "Veuillez entrer un email valide", e.Evaluate(FieldEmail, TextValue(""), snap).Error)
}

func TestCreateTontineRules(t *testing.T) {
	e := CreateTontine()
	snap := NewSnapshot(nil)

	tests := []struct {
		field string
		value string
		valid bool
	}{
		{FieldName, "Famille", true},
		{FieldName, " ", false},
		{FieldAmountPerMember, "25000", true},
		{FieldAmountPerMember, "0", false},
		{FieldAmountPerMember, "abc", false},
		{FieldMaxMembers, "2", true},
		{FieldMaxMembers, "1", false},
		{FieldMaxMembers, "2.5", false},
		{FieldFrequency, "weekly", true},
		{FieldFrequency, "yearly", false},
		{FieldDescription, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.field+"="+tt.value, func(t *testing.T) {
			assert.Equal(t, tt.valid, e.Evaluate(tt.field, TextValue(tt.value), snap).Valid)
		})
	}
}
