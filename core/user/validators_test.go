package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core"
	appfs "github.com/paridhisingla/unisync/fs"
)

func loadPasswords(t *testing.T) {
	pwds, err := readCommonPasswords(appfs.FS)
	require.NoError(t, err)
	require.NotEmpty(t, pwds)
	commonPwdMu.Lock()
	commonPasswords = pwds
	commonPwdMu.Unlock()
}

func Test_checkPassword(t *testing.T) {
	loadPasswords(t)

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 1234!", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdefg123", wantTag: pwdComplexityTag},
		{name: "no upper", pwd: "abcdefg12!", wantTag: pwdComplexityTag},
		{name: "similar to username", pwd: "Jonathan1!", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd", wantTag: pwdNoCommonTag},
		{name: "valid", pwd: "Tr0ub4dor&3x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTag, checkPassword(tt.pwd, "Jo", "jonathan1", "jo@test.cd"))
		})
	}
}

func TestValidatePassword(t *testing.T) {
	loadPasswords(t)

	err := ValidatePassword("short", User{Name: "A"})
	require.Error(t, err)
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "password", vErr.Fields[0].Field)
	assert.Equal(t, pwdMinLenText, vErr.Fields[0].Error)

	assert.NoError(t, ValidatePassword("Tr0ub4dor&3x", User{Name: "A", Username: "alpha"}))
}

func TestInitValidators(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	nu := NewUser{Name: "Stu", Password: "Tr0ub4dor&3x", PasswordConfirm: "Tr0ub4dor&3x", Roles: []string{"lol:"}}
	err := validate.Struct(nu)
	require.Error(t, err)
	fields := make(map[string]string)
	for _, fErr := range err.(validator.ValidationErrors) {
		fields[fErr.Field()] = fErr.Translate(translator)
	}
	assert.Equal(t, allRolesText, fields["roles"])
	assert.Equal(t, usernameOrEmailText, fields["username"])
	assert.Equal(t, usernameOrEmailText, fields["email"])

	nu.Roles = []string{RoleStudent}
	nu.Username = "student1"
	assert.NoError(t, validate.Struct(nu))
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, MaxRolePriority(nil))
	assert.Equal(t, 11, MaxRolePriority([]string{RoleStudent, RoleTeacher}))
	assert.Equal(t, 30, MaxRolePriority(AllRoles))

	usr := User{Roles: []string{RoleAdminPrincipal}}
	assert.True(t, usr.IsAdmin())
	assert.False(t, usr.IsStudent())
}
