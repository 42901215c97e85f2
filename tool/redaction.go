package tool

// MaskedSecretValue is used in logs and user-facing output for sensitive values.
const MaskedSecretValue = "**********"

// MaskSensitiveArgs returns a copy of args with values of sensitive
// parameters masked. Non-empty values only; an empty secret stays visible as
// empty so misconfiguration is still diagnosable.
func MaskSensitiveArgs(schema Schema, args Args) Args {
	if len(args) == 0 {
		return nil
	}

	masked := make(Args, len(args))
	for name, value := range args {
		p, ok := schema.Parameter(name)
		if ok && p.Sensitive && !isEmptyValue(value) {
			masked[name] = MaskedSecretValue
			continue
		}
		masked[name] = value
	}
	return masked
}

// MaskSensitiveValues masks configured values whose keys are listed as secret.
func MaskSensitiveValues(values Values, secretKeys ...string) Values {
	if len(values) == 0 {
		return nil
	}
	secret := make(map[string]struct{}, len(secretKeys))
	for _, key := range secretKeys {
		secret[key] = struct{}{}
	}
	masked := make(Values, len(values))
	for key, value := range values {
		if _, ok := secret[key]; ok && value != "" {
			masked[key] = MaskedSecretValue
			continue
		}
		masked[key] = value
	}
	return masked
}

func isEmptyValue(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}
