// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package profile

// Reference exclude rules: compiled translation catalogs and the
// crawler's page cache are maintained in the mirror by other tooling.
var defaultExcludes = []string{"translations", "crawl-cache"}

var defaultCommands = CommandsConfig{
	Sync:     "uv sync --frozen",
	Migrate:  "uv run python manage.py migrate --noinput",
	Build:    "npm ci && npm run build",
	Fixtures: "uv run python manage.py loaddata initial_data",
	Collect:  "uv run python manage.py collectstatic --noinput",
	Export:   "uv run python manage.py build",
}

const defaultLaunchCommand = "exec .venv/bin/gunicorn pythonkr_backend.asgi:application" +
	" -k uvicorn.workers.UvicornWorker --bind \"$LISTEN_ADDRESS\""

// builtin returns the reference configuration for name. Callers only
// pass valid names.
func builtin(name Name) Profile {
	commands := defaultCommands
	publish := PublishConfig{
		Remote:      "origin",
		Branch:      "main",
		Exclude:     append([]string(nil), defaultExcludes...),
		AuthorName:  "pkdeploy",
		AuthorEmail: "pkdeploy@localhost",
	}
	service := ServiceConfig{
		LaunchCommand:  defaultLaunchCommand,
		AccessLog:      "-",
		ErrorLog:       "-",
		RetireInterval: "1s",
		RetireAttempts: 30,
		ReadyTimeout:   "30s",
	}

	switch name {
	case Production:
		commands.Sync = "uv sync --frozen --no-dev"
		service.ListenAddress = "0.0.0.0:2026"
		service.User = "pk"
		service.AccessLog = "/home/pk/logs/access.log"
		service.ErrorLog = "/home/pk/logs/error.log"
		publish.Destination = "/home/pk/pythonkr.github.io"
		return Profile{
			Name:           Production,
			SettingsModule: "pythonkr_backend.settings.prod",
			Database:       DatabaseConfig{Engine: "postgresql", Name: "pk"},
			Paths: PathsConfig{
				Source:     "/home/pk/pythonkr_backend",
				StaticRoot: "/home/pk/static",
				MediaRoot:  "/home/pk/data/media",
				BuildDir:   "/home/pk/bakery_static/build",
				State:      "/home/pk/run",
			},
			Service:  service,
			Commands: commands,
			Publish:  publish,
		}

	case ContainerizedTest:
		service.ListenAddress = "0.0.0.0:8080"
		publish.Destination = "/app/publish"
		return Profile{
			Name:           ContainerizedTest,
			SettingsModule: "pythonkr_backend.settings.localtesting",
			Database:       DatabaseConfig{Engine: "postgresql", Host: "db", Name: "pk", User: "pk"},
			Paths: PathsConfig{
				Source:     "/app",
				StaticRoot: "/app/static",
				MediaRoot:  "/app/media",
				BuildDir:   "/app/bakery_static/build",
				State:      "/app/run",
			},
			Service:  service,
			Commands: commands,
			Publish:  publish,
		}

	default:
		service.ListenAddress = "127.0.0.1:8080"
		service.ReadyTimeout = "10s"
		publish.Destination = "${SOURCE}/../pythonkr.github.io"
		return Profile{
			Name:           Local,
			SettingsModule: "pythonkr_backend.settings.base",
			Debug:          true,
			Database:       DatabaseConfig{Engine: "sqlite3", Name: "db.sqlite3"},
			Paths: PathsConfig{
				Source:     "${PKDEPLOY_SOURCE:-.}",
				StaticRoot: "${SOURCE}/static",
				MediaRoot:  "${SOURCE}/media",
				BuildDir:   "${SOURCE}/bakery_static/build",
				State:      "${SOURCE}/.pkdeploy",
			},
			Service:  service,
			Commands: commands,
			Publish:  publish,
		}
	}
}
