package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown                   = "UNKNOWN"
	CodeInvalidArgument           = "INVALID_ARGUMENT"
	CodeUnauthenticated           = "UNAUTHENTICATED"
	CodeNotFound                  = "NOT_FOUND"
	CodeInvitationAlreadyAccepted = "INVITATION_ALREADY_ACCEPTED"
	CodeRemoteExchangeFailed      = "REMOTE_EXCHANGE_FAILED"
)

var enUSCatalog = NewCatalog(BaseLocale, map[Code]string{
	CodeUnknown:                   "An unexpected error occurred",
	CodeInvalidArgument:           "Invalid request: {{.Reason}}",
	CodeUnauthenticated:           "Could not validate credentials",
	CodeNotFound:                  "{{.Resource}} not found{{if .SandboxID}} in sandbox {{.SandboxID}}{{end}}",
	CodeInvitationAlreadyAccepted: "Invitation {{.MessageID}} has already been accepted",
	CodeRemoteExchangeFailed:      "The wallet agent could not complete {{.Operation}}; please retry",
})

var frCACatalog = NewCatalog("fr-CA", map[Code]string{
	CodeUnknown:                   "Une erreur inattendue est survenue",
	CodeInvalidArgument:           "Requête invalide : {{.Reason}}",
	CodeUnauthenticated:           "Impossible de valider les identifiants",
	CodeNotFound:                  "{{.Resource}} introuvable{{if .SandboxID}} dans le bac à sable {{.SandboxID}}{{end}}",
	CodeInvitationAlreadyAccepted: "L'invitation {{.MessageID}} a déjà été acceptée",
	CodeRemoteExchangeFailed:      "L'agent de portefeuille n'a pas pu terminer {{.Operation}}; veuillez réessayer",
})
