package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/toril-digital/toril/internal/github"
)

// Verify probes the remote connection without mutating anything: settings
// presence, repository reachability, token validity, write permission, and
// whether the target document exists yet. A missing document is a
// successful verification; it will be created on first publish.
func (p *Publisher) Verify(ctx context.Context) Result {
	settings, err := p.settings()
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("No se pudo leer la configuración: %v", err)}
	}
	if err := settings.Validate(); err != nil {
		return Result{Success: false, Message: "Faltan datos de conexión: revisa la configuración."}
	}

	client := p.client(settings.Token)

	repo, err := client.GetRepo(ctx, settings.RepoOwner, settings.RepoName)
	switch {
	case errors.Is(err, github.ErrUnauthorized):
		return Result{Success: false, Message: "Token inválido o caducado."}
	case errors.Is(err, github.ErrNotFound):
		return Result{Success: false, Message: "No se encuentra el repositorio: revisa el nombre."}
	case err != nil:
		return Result{Success: false, Message: fmt.Sprintf("Error de conexión: %v", err)}
	}

	// A valid token without push rights is its own outcome: the operator
	// needs a different token scope, not a retry.
	if !repo.Permissions.Push {
		return Result{Success: false, Message: "El token es válido pero NO tiene permisos de escritura sobre el repositorio."}
	}

	_, err = client.GetFile(ctx, settings.RepoOwner, settings.RepoName, settings.FilePath, settings.Branch)
	if errors.Is(err, github.ErrNotFound) {
		return Result{Success: true, Message: fmt.Sprintf("Conexión correcta. El archivo %s se creará al publicar por primera vez.", settings.FilePath)}
	}
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("Error leyendo el archivo: %v", err)}
	}

	return Result{Success: true, Message: "Conexión correcta. Todo listo."}
}
