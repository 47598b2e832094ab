package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaming(t *testing.T) {
	testCases := []struct {
		in, kebab, snake, pascal, camel string
	}{
		{"Posts", "posts", "posts", "Posts", "posts"},
		{"UserProfile", "user-profile", "user_profile", "UserProfile", "userProfile"},
		{"HTTPServer", "http-server", "http_server", "HTTPServer", "httpServer"},
		{"createdAt", "created-at", "created_at", "CreatedAt", "createdAt"},
		{"full_name", "full-name", "full_name", "FullName", "fullName"},
		{"ID", "id", "id", "ID", "id"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.kebab, Kebab(tc.in))
			assert.Equal(t, tc.snake, Snake(tc.in))
			assert.Equal(t, tc.pascal, Pascal(tc.in))
			assert.Equal(t, tc.camel, Camel(tc.in))
		})
	}

	assert.Equal(t, "/posts", DefaultRoute("Posts"))
	assert.Equal(t, "resolveUserFullName", ResolverName("User", "fullName"))
	assert.Equal(t, "PostToUser", RelationName("User", "Post"))
	assert.Equal(t, "PostToUser", RelationName("Post", "User"))
	assert.Equal(t, "OrderStatusInProgress", EnumConstName("OrderStatus", "IN_PROGRESS"))
	assert.Equal(t, "handleSendMail", HandlerName("send_mail"))
	assert.Equal(t, "sendMail.step2", StepRegion("SendMail", 2))
	assert.Equal(t, "UserProfile", TypeName("user_profile"))
}

func TestProviderSchemas(t *testing.T) {
	jwt, ok := LookupProvider(BlockAuth, "jwt")
	require.True(t, ok)
	assert.Equal(t, []string{"userEntity"}, jwt.Required())

	_, ok = jwt.Prop("secret")
	assert.True(t, ok)
	_, ok = jwt.Prop("apiKey")
	assert.False(t, ok)

	_, ok = LookupProvider(BlockEmail, "jwt")
	assert.False(t, ok)

	assert.Equal(t, []string{"jwt", "clerk", "auth0"}, Providers(BlockAuth))
	assert.Equal(t, []string{"sentry", "datadog"}, Providers(BlockMonitoring))
}

func TestConfig_MarshalJSON(t *testing.T) {
	c := Config{
		Database: PostgreSQL,
		Auth:     JWTAuth{User: "User", Secret: EnvSecret("JWT_SECRET")},
		Integrations: Integrations{
			Email: SMTPEmail{Host: "smtp.local", Port: 25, Password: Secret{Literal: "hunter2"}},
		},
	}
	b, err := json.Marshal(c)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "postgresql", got["database"])

	auth := got["auth"].(map[string]any)
	assert.Equal(t, "jwt", auth["provider"])
	assert.Equal(t, "User", auth["userEntity"])
	assert.Equal(t, map[string]any{"env": "JWT_SECRET"}, auth["secret"])

	email := got["integrations"].(map[string]any)["email"].(map[string]any)
	assert.Equal(t, "smtp", email["provider"])
	assert.NotContains(t, string(b), "hunter2")

	assert.Equal(t, []string{"JWT_SECRET"}, c.Secrets())
	assert.Equal(t, []string{"email"}, c.Integrations.Configured())
}

func TestExpr_MarshalAndRefs(t *testing.T) {
	e := &Binary{
		Op:    "+",
		Left:  &Binary{Op: "+", Left: &FieldRef{Name: "first"}, Right: &Literal{Type: TypeString, Value: " "}, Type: TypeString},
		Right: &FieldRef{Name: "last"},
		Type:  TypeString,
	}
	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
	  "kind": "binary", "op": "+", "type": "String",
	  "left": {"kind": "binary", "op": "+", "type": "String",
	           "left": {"kind": "field", "name": "first"},
	           "right": {"kind": "literal", "type": "String", "value": " "}},
	  "right": {"kind": "field", "name": "last"}
	}`, string(b))

	assert.Equal(t, []string{"first", "last"}, Refs(e))
	assert.Equal(t, TypeString, ExprType(e, nil))
	assert.Equal(t, TypeInt, ExprType(&FieldRef{Name: "n"}, func(string) TypeKind { return TypeInt }))
}
