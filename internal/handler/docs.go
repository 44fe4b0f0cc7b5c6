package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Signal Transceiver

Publishers append records to a strategy's ledger; subscribers poll them
incrementally through a cursor.

## Credentials

- X-API-Key: session key returned by /auth/register and /auth/login.
  Required for strategy writes, client credential rotation and /admin.
- X-Client-Key + X-Client-Secret: machine pair used for /data and
  /subscriptions. The secret is shown once, at issuance.

When both are sent the client pair is checked first.

## Routes

- POST /auth/register, POST /auth/login
- POST /auth/client-credentials, GET /auth/me
- POST /strategies, GET /strategies, GET /strategies/{id}
- PUT /strategies/{id}, POST /strategies/{id}/deactivate
- POST /data, POST /data/batch, GET /data, GET /data/{id}
- POST /subscriptions, GET /subscriptions
- GET|PUT|DELETE /subscriptions/{id}
- GET /subscriptions/{id}/poll?since=&limit=
- PUT /admin/accounts/{username}/role, PUT /admin/accounts/{username}/active
- GET /health, GET /readyz, GET /swagger/index.html

## Polling

Each poll returns the matching records after the cursor, oldest first,
and moves the cursor to the last record scanned even when it did not
match the filter. has_more means another page is waiting.
`)
	})
}
