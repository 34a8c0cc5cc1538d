package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/tontine/pkg/tontine"
	"github.com/gin-gonic/gin"
)

// flexibleID accepts ids sent either as JSON numbers or numeric strings.
type flexibleID int64

func (id *flexibleID) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = 0
		return nil
	}
	trimmed = bytes.Trim(trimmed, `"`)
	if len(trimmed) == 0 {
		*id = 0
		return nil
	}
	value, err := strconv.ParseInt(string(trimmed), 10, 64)
	if err != nil {
		return fmt.Errorf("id %q is not an integer", string(raw))
	}
	*id = flexibleID(value)
	return nil
}

// groupRefBody names the target group the way the clients send it.
type groupRefBody struct {
	TontineID  flexibleID `json:"tontineId"`
	CorridorID flexibleID `json:"corridorId"`
	GroupID    flexibleID `json:"groupId"`
}

func (body groupRefBody) ref() (tontine.GroupRef, error) {
	switch {
	case body.TontineID != 0:
		return tontine.NewGroupRef(tontine.GroupKindTontine, int64(body.TontineID))
	case body.CorridorID != 0:
		return tontine.NewGroupRef(tontine.GroupKindCorridor, int64(body.CorridorID))
	default:
		return anyKindRef(int64(body.GroupID))
	}
}

// anyKindRef addresses a group whatever its kind.
func anyKindRef(rawID int64) (tontine.GroupRef, error) {
	groupID, err := tontine.NewGroupID(rawID)
	if err != nil {
		return tontine.GroupRef{}, err
	}
	return tontine.GroupRef{ID: groupID}, nil
}

// bindJSON decodes the body into target. An empty body is accepted when allowEmpty is set.
func bindJSON(ctx *gin.Context, target any, allowEmpty bool) bool {
	if err := ctx.ShouldBindJSON(target); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		respondFailure(ctx, http.StatusBadRequest, codeInvalidPayload, "expected JSON body: "+err.Error())
		return false
	}
	return true
}

func parseInt64(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

func groupRefParam(ctx *gin.Context, name string, kind tontine.GroupKind) (tontine.GroupRef, error) {
	rawID, err := parseInt64(ctx.Param(name))
	if err != nil {
		return tontine.GroupRef{}, fmt.Errorf("%w: %q", tontine.ErrInvalidGroupID, ctx.Param(name))
	}
	if kind == "" {
		return anyKindRef(rawID)
	}
	return tontine.NewGroupRef(kind, rawID)
}

func userIDParam(ctx *gin.Context, name string) (tontine.UserID, error) {
	rawID, err := parseInt64(ctx.Param(name))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", tontine.ErrInvalidUserID, ctx.Param(name))
	}
	return tontine.NewUserID(rawID)
}

// optionalKindQuery reads ?kind=, returning "" when absent.
func optionalKindQuery(ctx *gin.Context) (tontine.GroupKind, error) {
	raw := strings.TrimSpace(ctx.Query("kind"))
	if raw == "" {
		return "", nil
	}
	return tontine.ParseGroupKind(raw)
}

// optionalGroupQuery reads ?groupId=, returning nil when absent.
func optionalGroupQuery(ctx *gin.Context) (*tontine.GroupID, error) {
	raw := strings.TrimSpace(ctx.Query("groupId"))
	if raw == "" {
		return nil, nil
	}
	rawID, err := parseInt64(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", tontine.ErrInvalidGroupID, raw)
	}
	groupID, err := tontine.NewGroupID(rawID)
	if err != nil {
		return nil, err
	}
	return &groupID, nil
}

func optionalGroupID(primary flexibleID, fallbacks ...flexibleID) (*tontine.GroupID, error) {
	for _, candidate := range append([]flexibleID{primary}, fallbacks...) {
		if candidate == 0 {
			continue
		}
		groupID, err := tontine.NewGroupID(int64(candidate))
		if err != nil {
			return nil, err
		}
		return &groupID, nil
	}
	return nil, nil
}

func parseAmount(raw int64) (tontine.Amount, error) {
	return tontine.NewAmount(raw)
}
