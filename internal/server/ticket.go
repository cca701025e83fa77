package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TicketTTL 所有权凭证有效期
	TicketTTL = 30 * time.Minute

	ticketIssuer = "doggos-server"
	ticketEnv    = "DOGGOS_TICKET_SECRET"
)

var ErrInvalidTicket = errors.New("凭证无效")

// TicketClaims 角色所有权凭证
type TicketClaims struct {
	ActorID uint32 `json:"actor_id"`
	jwt.RegisteredClaims
}

// TicketIssuer 签发和校验所有权凭证，断线后凭证可重新绑定到原角色
type TicketIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTicketIssuer 创建签发器，secret 为空时从环境变量读取
func NewTicketIssuer(secret string) *TicketIssuer {
	if secret == "" {
		secret = os.Getenv(ticketEnv)
	}
	if secret == "" {
		// 开发环境默认密钥，生产环境应设置环境变量
		secret = "doggos-dev-secret-change-in-production"
	}
	return &TicketIssuer{
		secret: []byte(secret),
		ttl:    TicketTTL,
		now:    time.Now,
	}
}

// Issue 为角色签发凭证
func (t *TicketIssuer) Issue(actorID uint32) (string, error) {
	now := t.now()
	claims := TicketClaims{
		ActorID: actorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ticketIssuer,
			Subject:   fmt.Sprintf("actor-%d", actorID),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify 校验凭证并返回角色 ID
func (t *TicketIssuer) Verify(ticket string) (uint32, error) {
	claims := &TicketClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(token *jwt.Token) (any, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(ticketIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if !token.Valid || claims.ActorID == 0 {
		return 0, ErrInvalidTicket
	}
	return claims.ActorID, nil
}
