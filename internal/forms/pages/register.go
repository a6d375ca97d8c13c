package pages

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"carepulse/internal/catalog"
	"carepulse/internal/common/validation"
	"carepulse/internal/forms/controller"
	"carepulse/internal/forms/field"
	"carepulse/internal/models"

	"github.com/flosch/pongo2/v6"
)

const RegisterFormName = "patient.register"

type RegisterPatientFunc func(ctx context.Context, params models.RegisterPatientParams) (*models.Patient, error)

var genderRadios = pongo2.Must(pongo2.FromString(
	`<div class="radio-group">{% for g in genders %}<div class="radio-option">` +
		`<input type="radio" id="{{ name }}-{{ g }}" name="{{ name }}" value="{{ g }}"{% if g == value %} checked{% endif %}>` +
		`<label for="{{ name }}-{{ g }}">{{ g }}</label></div>{% endfor %}</div>`))

// genderSlot renders the gender choice as a radio group.
func genderSlot(genders []string) field.SlotFunc {
	return func(name, value string) (string, error) {
		return genderRadios.Execute(pongo2.Context{"name": name, "value": value, "genders": genders})
	}
}

// Section is a headed group of fields on a page.
type Section struct {
	Heading string
	Fields  []field.Descriptor
}

// Flatten returns the fields of every section in page order.
func Flatten(sections []Section) []field.Descriptor {
	var out []field.Descriptor
	for _, s := range sections {
		out = append(out, s.Fields...)
	}
	return out
}

func RegisterSections(cat *catalog.Catalog) []Section {
	return []Section{
		{Heading: "Personal Information", Fields: []field.Descriptor{
			{Kind: field.KindInput, Name: "name", Label: "Full name", Placeholder: "John Doe", IconSrc: "/assets/icons/user.svg", IconAlt: "user"},
			{Kind: field.KindInput, Name: "email", Label: "Email address", Placeholder: "johndoe@gmail.com", IconSrc: "/assets/icons/email.svg", IconAlt: "email"},
			{Kind: field.KindPhoneInput, Name: "phone", Label: "Phone number", Placeholder: "(555) 123-4567"},
			{Kind: field.KindDatePicker, Name: "birthDate", Label: "Date of birth"},
			{Kind: field.KindSkeleton, Name: "gender", Label: "Gender", Slot: genderSlot(cat.Genders)},
			{Kind: field.KindInput, Name: "address", Label: "Address", Placeholder: "14 street, New york, NY - 5101"},
			{Kind: field.KindInput, Name: "occupation", Label: "Occupation", Placeholder: "Software Engineer"},
			{Kind: field.KindInput, Name: "emergencyContactName", Label: "Emergency contact name", Placeholder: "Guardian's name"},
			{Kind: field.KindPhoneInput, Name: "emergencyContactNumber", Label: "Emergency contact number", Placeholder: "(555) 123-4567"},
		}},
		{Heading: "Medical Information", Fields: []field.Descriptor{
			{Kind: field.KindSelect, Name: "primaryPhysician", Label: "Primary care physician", Placeholder: "Select a physician", Options: cat.DoctorOptions()},
			{Kind: field.KindInput, Name: "insuranceProvider", Label: "Insurance provider", Placeholder: "BlueCross BlueShield"},
			{Kind: field.KindInput, Name: "insurancePolicyNumber", Label: "Insurance policy number", Placeholder: "ABC123456789"},
			{Kind: field.KindTextarea, Name: "allergies", Label: "Allergies (if any)", Placeholder: "Peanuts, Penicillin, Pollen"},
			{Kind: field.KindTextarea, Name: "currentMedication", Label: "Current medications", Placeholder: "Ibuprofen 200mg, Levothyroxine 50mcg"},
			{Kind: field.KindTextarea, Name: "familyMedicalHistory", Label: "Family medical history (if relevant)", Placeholder: "Mother had brain cancer, Father has hypertension"},
			{Kind: field.KindTextarea, Name: "pastMedicalHistory", Label: "Past medical history", Placeholder: "Appendectomy in 2015, Asthma diagnosis in childhood"},
		}},
		{Heading: "Identification and Verification", Fields: []field.Descriptor{
			{Kind: field.KindSelect, Name: "identificationType", Label: "Identification Type", Placeholder: "Select identification type", Options: cat.IdentificationOptions()},
			{Kind: field.KindInput, Name: "identificationNumber", Label: "Identification Number", Placeholder: "123456789"},
		}},
		{Heading: "Consent and Privacy", Fields: []field.Descriptor{
			{Kind: field.KindCheckbox, Name: "treatmentConsent", Label: "I consent to receive treatment for my health condition."},
			{Kind: field.KindCheckbox, Name: "disclosureConsent", Label: "I consent to the use and disclosure of my health information for treatment purposes."},
			{Kind: field.KindCheckbox, Name: "privacyConsent", Label: "I acknowledge that I have reviewed and agree to the privacy policy"},
		}},
	}
}

func RegisterFields(cat *catalog.Catalog) []field.Descriptor {
	return Flatten(RegisterSections(cat))
}

// RegisterForm collects the patient record for user. The name, email and
// phone start from the user's intake.
func RegisterForm(cat *catalog.Catalog, user *models.User, now time.Time, register RegisterPatientFunc) (controller.Definition[models.RegisterPatientParams, models.Patient], map[string]interface{}) {
	userID := ""
	defaults := map[string]interface{}{
		"birthDate":          now,
		"gender":             string(models.GenderMale),
		"identificationType": "Birth Certificate",
		"treatmentConsent":   false,
		"disclosureConsent":  false,
		"privacyConsent":     false,
	}
	if user != nil {
		userID = user.ID
		defaults["name"] = user.Name
		defaults["email"] = user.Email
		defaults["phone"] = user.Phone
	}

	def := controller.Definition[models.RegisterPatientParams, models.Patient]{
		Name:   RegisterFormName,
		Schema: validation.SchemaPatient,
		Fields: RegisterFields(cat),
		Build: func(values map[string]interface{}) (models.RegisterPatientParams, error) {
			if err := requireIDs([2]string{"userId", userID}); err != nil {
				return models.RegisterPatientParams{}, err
			}
			return models.RegisterPatientParams{
				UserID: userID,
				PatientDetails: models.PatientDetails{
					Name:                   str(values, "name"),
					Email:                  str(values, "email"),
					Phone:                  str(values, "phone"),
					BirthDate:              instant(values, "birthDate"),
					Gender:                 models.Gender(str(values, "gender")),
					Address:                str(values, "address"),
					Occupation:             str(values, "occupation"),
					EmergencyContactName:   str(values, "emergencyContactName"),
					EmergencyContactNumber: str(values, "emergencyContactNumber"),
					PrimaryPhysician:       str(values, "primaryPhysician"),
					InsuranceProvider:      str(values, "insuranceProvider"),
					InsurancePolicyNumber:  str(values, "insurancePolicyNumber"),
					Allergies:              str(values, "allergies"),
					CurrentMedication:      str(values, "currentMedication"),
					FamilyMedicalHistory:   str(values, "familyMedicalHistory"),
					PastMedicalHistory:     str(values, "pastMedicalHistory"),
					IdentificationType:     str(values, "identificationType"),
					IdentificationNumber:   str(values, "identificationNumber"),
					TreatmentConsent:       boolean(values, "treatmentConsent"),
					DisclosureConsent:      boolean(values, "disclosureConsent"),
					PrivacyConsent:         boolean(values, "privacyConsent"),
				},
			}, nil
		},
		Action: register,
		Redirect: func(p *models.Patient) string {
			return fmt.Sprintf("/patients/%s/new-appointment", url.PathEscape(p.UserID))
		},
	}
	return def, defaults
}
