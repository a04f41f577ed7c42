package authcfg

import "github.com/zenwatch/zenwatch/internal/db/models"

// CheckPasswordPolicy rejects a (minLength, rules) pair whose required
// character classes cannot fit in a password of the minimum length. One
// character satisfies the presence requirement of one class, so the pair is
// unsatisfiable only when:
//
//   - minLength is 1 and any two of {Case, Digits, Special} are required, or
//   - minLength is 2 and all three of {Case, Digits, Special} are required.
//
// Every other combination is accepted; a minimum length of 3 or more always
// fits all three classes. Pure function, no state.
func CheckPasswordPolicy(minLength int, rules models.PasswdCheckRules) *FieldError {
	needCase := rules.Has(models.PasswdCheckCase)
	needDigits := rules.Has(models.PasswdCheckDigits)
	needSpecial := rules.Has(models.PasswdCheckSpecial)

	twoOfThree := (needCase && needDigits) || (needCase && needSpecial) || (needDigits && needSpecial)
	allThree := needCase && needDigits && needSpecial

	if (minLength == 1 && twoOfThree) || (minLength == 2 && allThree) {
		return &FieldError{
			Field:  FieldPasswdCheckRules,
			Reason: "length is not sufficient for selected password requirements",
		}
	}

	return nil
}
