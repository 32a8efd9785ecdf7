package service

import (
	"errors"
	"fmt"

	"rendezvous-api/internal/metrics"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	default:
		return "internal"
	}
}

// Client-facing messages.
const (
	MsgRegisterRequired = "Nom complet, email et mot de passe requis"
	MsgUserExists       = "Utilisateur déjà existant"
	MsgPasswordTooLong  = "Mot de passe trop long (72 octets maximum)"
	MsgRegistered       = "Inscription réussie"
	MsgBadCredentials   = "Email ou mot de passe incorrect"
	MsgLoggedIn         = "Connexion réussie"
	MsgFieldsRequired   = "Tous les champs sont requis"
	MsgBadDateTime      = "Date ou heure invalide"
	MsgSlotTaken        = "Un rendez-vous existe déjà à cette date et heure"
	MsgSlotBusy         = "Ce créneau est en cours de réservation, veuillez réessayer"
	MsgBooked           = "Rendez-vous créé avec succès"
	MsgUnauthorized     = "Authentification requise"
	MsgInternal         = "Erreur interne du serveur"
)

// Error carries a Kind and a message that is safe to show the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }
func conflict(msg string) error   { return &Error{Kind: KindConflict, Message: msg} }
func denied(msg string) error     { return &Error{Kind: KindAuth, Message: msg} }

func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf reports the Kind of err; anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return MsgInternal
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	switch KindOf(err) {
	case KindValidation:
		return metrics.OutcomeInvalid
	case KindConflict:
		return metrics.OutcomeConflict
	case KindAuth:
		return metrics.OutcomeDenied
	default:
		return metrics.OutcomeError
	}
}
