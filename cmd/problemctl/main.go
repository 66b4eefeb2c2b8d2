// Command problemctl loads problem sets into the database and mints dev tokens.
//
//	problemctl import problems.yaml
//	problemctl token <user-id> [ttl]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"code_duel/internal/app/service"
	"code_duel/internal/common/security"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/config"
	"code_duel/internal/platform/database"
	"code_duel/internal/platform/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const usage = `usage:
  problemctl import <file.yaml>
  problemctl token <user-id> [ttl]`

type problemFile struct {
	Problems []service.ImportProblemRequest `yaml:"problems"`
}

func main() {
	config.Load()
	logger.Init(config.AppConfig.LogLevel, "console")
	defer logger.Sync()

	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New(usage)
	}
	switch args[0] {
	case "import":
		return importProblems(ctx, args[1])
	case "token":
		ttl := config.AppConfig.JWTExp
		if len(args) > 2 {
			d, err := time.ParseDuration(args[2])
			if err != nil {
				return fmt.Errorf("invalid ttl %q: %w", args[2], err)
			}
			ttl = d
		}
		security.InitJWT(config.AppConfig.JWTKey)
		token, err := security.GenerateToken(args[1], ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	default:
		return errors.New(usage)
	}
}

func importProblems(ctx context.Context, path string) error {
	reqs, err := loadProblemFile(path)
	if err != nil {
		return err
	}

	if err := database.Connect(); err != nil {
		return err
	}
	defer database.Close()
	if config.AppConfig.DBAutoMigrate {
		if err := database.Migrate(ctx, database.DB); err != nil {
			return err
		}
	}

	problems := service.NewProblemService(repository.NewPgProblemRepository(database.DB))
	n, err := importAll(ctx, problems, reqs)
	logger.L().Info("import_finished", zap.String("file", path), zap.Int("imported", n), zap.Int("total", len(reqs)))
	return err
}

func loadProblemFile(path string) ([]service.ImportProblemRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f problemFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Problems) == 0 {
		return nil, fmt.Errorf("%s contains no problems", path)
	}
	return f.Problems, nil
}

// importAll keeps going past a bad problem and reports every failure at the end.
func importAll(ctx context.Context, problems *service.ProblemService, reqs []service.ImportProblemRequest) (int, error) {
	var errs []error
	imported := 0
	for _, req := range reqs {
		if _, err := problems.ImportProblem(ctx, req); err != nil {
			errs = append(errs, err)
			continue
		}
		imported++
	}
	return imported, errors.Join(errs...)
}
