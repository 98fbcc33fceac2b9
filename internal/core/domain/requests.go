package domain

// LoginRequest is the POST /login body, JSON or form encoded. Fields are
// validated by the service so a missing field maps to the login-specific message.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// RefreshRequest is the POST /token/refresh body.
type RefreshRequest struct {
	Refresh string `json:"refresh" form:"refresh"`
}

// NamesInput is the nested identity block of a profile update.
type NamesInput struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// UpdateProfileRequest is the PUT /usuario/perfil body. A nil pointer means the
// field was absent or null and leaves the stored value unchanged.
type UpdateProfileRequest struct {
	User        *NamesInput `json:"user"`
	Phone       *string     `json:"telefono" validate:"omitempty,max=15"`
	Document    *string     `json:"documento" validate:"omitempty,max=20"`
	UserKind    *string     `json:"tipo_usuario" validate:"omitempty,user_kind"`
	LegalNature *string     `json:"tipo_naturaleza" validate:"omitempty,legal_nature"`
	Biography   *string     `json:"biografia" validate:"omitempty,max=500"`
	LinkedIn    *string     `json:"linkedin" validate:"omitempty,max=200,profile_url"`
	Twitter     *string     `json:"twitter" validate:"omitempty,max=200,profile_url"`
	GitHub      *string     `json:"github" validate:"omitempty,max=200,profile_url"`
	Website     *string     `json:"sitio_web" validate:"omitempty,max=200,profile_url"`
	// Verified keeps whatever JSON type the client sent; see ParseVerified.
	Verified any `json:"esta_verificado"`
}
