package smolblog

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Draft accumulates the fields of one submission before it is validated and
// saved. A draft belongs to the request that created it and is never shared.
type Draft struct {
	Username   *string `form:"username"     validate:"required"`
	Content    *string `form:"post_content" validate:"required"`
	ImagePath  *string `form:"post_image"   validate:"-"`
	AvatarPath *string `form:"avatar_url"   validate:"-"`

	// Assets contains every file written on behalf of this draft, including
	// ones that were later replaced by a repeated field.
	Assets []StoredAsset `validate:"-"`
}

// SetUsername sets the username. Repeated fields overwrite earlier values.
func (d *Draft) SetUsername(username string) {
	d.Username = strptr(username)
}

// SetContent sets the post content. Repeated fields overwrite earlier values.
func (d *Draft) SetContent(content string) {
	d.Content = strptr(content)
}

// SetImage records the stored image as the post image.
func (d *Draft) SetImage(a StoredAsset) {
	d.ImagePath = strptr(a.Ref)
	d.Assets = append(d.Assets, a)
}

// SetAvatar records the stored avatar as the post avatar.
func (d *Draft) SetAvatar(a StoredAsset) {
	d.AvatarPath = strptr(a.Ref)
	d.Assets = append(d.Assets, a)
}

// AssetNames returns the names of all files written for this draft.
func (d Draft) AssetNames() []string {
	var names = make([]string, len(d.Assets))
	for i, a := range d.Assets {
		names[i] = a.Name
	}
	return names
}

// Replaced returns the assets that were written but are no longer referenced
// by the draft because a repeated field replaced them.
func (d Draft) Replaced() []StoredAsset {
	var replaced []StoredAsset
	for _, a := range d.Assets {
		if a.Ref != deref(d.ImagePath) && a.Ref != deref(d.AvatarPath) {
			replaced = append(replaced, a)
		}
	}
	return replaced
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their form names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("form")
	})

	return v
}

// Validate checks that the username and content are present. Present but
// empty or blank values pass. The returned error is of kind Validation.
func (d Draft) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return Wrap(Validation, err, "Failed to validate post")
	}

	field := verrs[0]
	return Errorf(Validation, "%s is required", field.Field())
}
