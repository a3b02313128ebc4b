package utils

// Server-side messages for fixed keys. Survey content is stored as entered and
// never translated here.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":                   "ok",
		"error.invalid":               "The request is invalid.",
		"error.forbidden":             "You are not allowed to do this.",
		"error.not_found":             "Not found.",
		"error.conflict":              "This conflicts with the current state.",
		"error.unauthorized":          "Please sign in.",
		"error.bad_gateway":           "An upstream service failed.",
		"error.already_completed":     "You have already completed this survey this year.",
		"error.invalid_answer":        "One of the answers is not a valid option.",
		"error.verification_mismatch": "The verification code is wrong or has expired.",
		"error.phone_format":          "The phone number must start with the country calling code.",
		"error.store_unavailable":     "The service is temporarily unavailable. Please try again.",
		"error.internal":              "Something went wrong.",
	},
	"fr": {
		"health.ok":                   "ok",
		"error.invalid":               "La requête est invalide.",
		"error.forbidden":             "Vous n'êtes pas autorisé à faire ceci.",
		"error.not_found":             "Introuvable.",
		"error.conflict":              "Conflit avec l'état actuel.",
		"error.unauthorized":          "Veuillez vous connecter.",
		"error.bad_gateway":           "Un service externe a échoué.",
		"error.already_completed":     "Vous avez déjà répondu à ce sondage cette année.",
		"error.invalid_answer":        "Une des réponses n'est pas une option valide.",
		"error.verification_mismatch": "Le code de vérification est incorrect ou expiré.",
		"error.phone_format":          "Le numéro doit commencer par l'indicatif du pays.",
		"error.store_unavailable":     "Service momentanément indisponible. Veuillez réessayer.",
		"error.internal":              "Une erreur est survenue.",
	},
	"sw": {
		"health.ok":                   "sawa",
		"error.invalid":               "Ombi si sahihi.",
		"error.forbidden":             "Huruhusiwi kufanya hivi.",
		"error.not_found":             "Haikupatikana.",
		"error.unauthorized":          "Tafadhali ingia.",
		"error.already_completed":     "Tayari umekamilisha utafiti huu mwaka huu.",
		"error.invalid_answer":        "Moja ya majibu si chaguo halali.",
		"error.verification_mismatch": "Nambari ya uthibitisho si sahihi au imeisha muda.",
		"error.phone_format":          "Nambari ya simu lazima ianze na msimbo wa nchi.",
		"error.store_unavailable":     "Huduma haipatikani kwa sasa. Tafadhali jaribu tena.",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
