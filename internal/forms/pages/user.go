package pages

import (
	"context"
	"fmt"
	"net/url"

	"carepulse/internal/common/validation"
	"carepulse/internal/forms/controller"
	"carepulse/internal/forms/field"
	"carepulse/internal/models"
)

const UserFormName = "user"

type CreateUserFunc func(ctx context.Context, params models.CreateUserParams) (*models.User, error)

func UserFields() []field.Descriptor {
	return []field.Descriptor{
		{Kind: field.KindInput, Name: "name", Label: "Full name", Placeholder: "John Doe", IconSrc: "/assets/icons/user.svg", IconAlt: "user"},
		{Kind: field.KindInput, Name: "email", Label: "Email", Placeholder: "johndoe@gmail.com", IconSrc: "/assets/icons/email.svg", IconAlt: "email"},
		{Kind: field.KindPhoneInput, Name: "phone", Label: "Phone number", Placeholder: "(555) 123-4567"},
	}
}

// UserForm is the landing page intake. It leads on to patient registration.
func UserForm(create CreateUserFunc) (controller.Definition[models.CreateUserParams, models.User], map[string]interface{}) {
	def := controller.Definition[models.CreateUserParams, models.User]{
		Name:   UserFormName,
		Schema: validation.SchemaUser,
		Fields: UserFields(),
		Build: func(values map[string]interface{}) (models.CreateUserParams, error) {
			return models.CreateUserParams{
				Name:  str(values, "name"),
				Email: str(values, "email"),
				Phone: str(values, "phone"),
			}, nil
		},
		Action: create,
		Redirect: func(u *models.User) string {
			return fmt.Sprintf("/patients/%s/register", url.PathEscape(u.ID))
		},
	}
	defaults := map[string]interface{}{"name": "", "email": "", "phone": ""}
	return def, defaults
}
