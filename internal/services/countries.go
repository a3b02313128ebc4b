package services

import (
	"sort"
	"strings"
)

// callingCodes maps every supported country to its international calling code.
var callingCodes = map[string]string{
	"Algeria":                          "+213",
	"Angola":                           "+244",
	"Benin":                            "+229",
	"Botswana":                         "+267",
	"Burkina Faso":                     "+226",
	"Burundi":                          "+257",
	"Cameroon":                         "+237",
	"Cape Verde":                       "+238",
	"Central African Republic":         "+236",
	"Chad":                             "+235",
	"Comoros":                          "+269",
	"Democratic Republic of the Congo": "+243",
	"Republic of the Congo":            "+242",
	"Djibouti":                         "+253",
	"Egypt":                            "+20",
	"Equatorial Guinea":                "+240",
	"Eritrea":                          "+291",
	"Eswatini":                         "+268",
	"Ethiopia":                         "+251",
	"Gabon":                            "+241",
	"Gambia":                           "+220",
	"Ghana":                            "+233",
	"Guinea":                           "+224",
	"Guinea-Bissau":                    "+245",
	"Ivory Coast":                      "+225",
	"Kenya":                            "+254",
	"Lesotho":                          "+266",
	"Liberia":                          "+231",
	"Libya":                            "+218",
	"Madagascar":                       "+261",
	"Malawi":                           "+265",
	"Mali":                             "+223",
	"Mauritania":                       "+222",
	"Mauritius":                        "+230",
	"Morocco":                          "+212",
	"Mozambique":                       "+258",
	"Namibia":                          "+264",
	"Niger":                            "+227",
	"Nigeria":                          "+234",
	"Rwanda":                           "+250",
	"São Tomé and Príncipe":            "+239",
	"Senegal":                          "+221",
	"Seychelles":                       "+248",
	"Sierra Leone":                     "+232",
	"Somalia":                          "+252",
	"South Africa":                     "+27",
	"South Sudan":                      "+211",
	"Sudan":                            "+249",
	"Tanzania":                         "+255",
	"Togo":                             "+228",
	"Tunisia":                          "+216",
	"Uganda":                           "+256",
	"Zambia":                           "+260",
	"Zimbabwe":                         "+263",
}

type Country struct {
	Name        string `json:"name"`
	CallingCode string `json:"calling_code"`
}

// Countries lists the supported countries sorted by name.
func Countries() []Country {
	out := make([]Country, 0, len(callingCodes))
	for name, code := range callingCodes {
		out = append(out, Country{Name: name, CallingCode: code})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CallingCode returns the calling code of a supported country.
func CallingCode(country string) (string, bool) {
	code, ok := callingCodes[country]
	return code, ok
}

// IsSupportedCountry reports whether country is in the supported set.
func IsSupportedCountry(country string) bool {
	_, ok := callingCodes[country]
	return ok
}

// ValidatePhone checks that phone starts with the calling code of country.
func ValidatePhone(country, phone string) error {
	code, ok := CallingCode(country)
	if !ok {
		return NewInvalidError("unsupported country")
	}
	phone = strings.TrimSpace(phone)
	if !strings.HasPrefix(phone, code) || len(phone) == len(code) {
		return NewPhoneFormatError("phone number must start with " + code + " for " + country)
	}
	for _, r := range phone[1:] {
		if (r < '0' || r > '9') && r != ' ' {
			return NewPhoneFormatError("phone number may contain only digits after +")
		}
	}
	return nil
}
