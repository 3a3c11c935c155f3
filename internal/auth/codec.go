// Package auth выпускает и проверяет подписанные bearer-токены.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

// CredentialTTL задаёт фиксированный срок действия токена.
const CredentialTTL = time.Hour

const issuer = "sapataria"

// ErrSecretRequired возвращается при попытке создать Codec без секрета.
var ErrSecretRequired = errors.New("credential signing secret is required")

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Codec подписывает и проверяет токены HS256. Секрет задаётся один раз при создании.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// Option настраивает Codec.
type Option func(*Codec)

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec создаёт Codec с указанным секретом.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}

	c := &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	return c, nil
}

// Issue выпускает токен для subjectID с ролью role, действующий CredentialTTL.
// Время выпуска округляется вниз до секунды, как и поля exp/iat в токене.
func (c *Codec) Issue(subjectID int64, role model.Role) (string, time.Time, error) {
	if _, ok := model.ParseRole(string(role)); !ok {
		return "", time.Time{}, fmt.Errorf("issue credential: unknown role %q", role)
	}

	issuedAt := c.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(CredentialTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign credential: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify проверяет токен целиком: подпись, алгоритм, издателя, срок действия,
// идентификатор и роль. Любое несоответствие даёт ErrUnauthenticated.
func (c *Codec) Verify(credential string) (model.IdentityContext, error) {
	if credential == "" {
		return model.IdentityContext{}, model.Unauthenticated("token not provided")
	}

	var cl claims
	token, err := c.parser.ParseWithClaims(credential, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return model.IdentityContext{}, model.Unauthenticated("invalid or expired token")
	}

	// jwt считает токен действующим в саму секунду exp, нам нужна полуоткрытая граница.
	expiresAt := cl.ExpiresAt.Time
	if !c.now().Before(expiresAt) {
		return model.IdentityContext{}, model.Unauthenticated("invalid or expired token")
	}

	subjectID, err := strconv.ParseInt(cl.Subject, 10, 64)
	if err != nil || subjectID <= 0 {
		return model.IdentityContext{}, model.Unauthenticated("invalid or expired token")
	}

	role, ok := model.ParseRole(cl.Role)
	if !ok {
		return model.IdentityContext{}, model.Unauthenticated("invalid or expired token")
	}

	return model.IdentityContext{
		SubjectID: subjectID,
		Role:      role,
		ExpiresAt: expiresAt,
	}, nil
}
