// Package cli is the device companion command-line app: it resumes or
// recovers a chapter session and submits workspace files.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ssergeev/studysync/internal/client/api"
	"github.com/ssergeev/studysync/internal/client/config"
	"github.com/ssergeev/studysync/internal/client/local"
	"github.com/ssergeev/studysync/internal/client/services"
	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/logging"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	store      *local.Store
	api        api.Client
	reconciler *services.Reconciler
	dispatcher *services.Dispatcher
	recorder   *services.Recorder
	submitter  *services.Submitter
	out        io.Writer
}

func NewApp(ctx context.Context, cfg *config.Config, l logging.Logger, out io.Writer) (*App, error) {
	store, err := local.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("local store init error: %w", err)
	}

	client := api.NewHTTPClient(cfg.ServerEndpointAddr, cfg.AuthToken)
	dispatcher := services.NewDispatcher(client, l, cfg.DispatchTimeout)

	return &App{
		config:     cfg,
		logger:     l,
		store:      store,
		api:        client,
		reconciler: services.NewReconciler(store, client, l, cfg.FetchTimeout),
		dispatcher: dispatcher,
		recorder:   services.NewRecorder(store, dispatcher, l),
		submitter:  services.NewSubmitter(client, l),
		out:        out,
	}, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

const usage = `usage: studysync-client [flags] <command> [args]

commands:
  ping                              check server reachability
  resume <chapter-id> [course-id]   resume or recover the chapter session
  record <chapter-id> <user-message> <agent-response>
                                    append a turn to the chapter session
  submit <chapter-id> <file-path>   upload a workspace file
  files                             list submitted files and quota
`

// Run executes a single command. Positional args follow the flags.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errors.New("no command given")
	}

	switch args[0] {
	case "ping":
		return a.ping(ctx)
	case "resume":
		if len(args) < 2 {
			return errors.New("resume requires a chapter id")
		}
		courseID := ""
		if len(args) > 2 {
			courseID = args[2]
		}
		return a.resume(ctx, args[1], courseID)
	case "record":
		if len(args) < 4 {
			return errors.New("record requires a chapter id, a user message and an agent response")
		}
		return a.record(ctx, args[1], args[2], args[3])
	case "submit":
		if len(args) < 3 {
			return errors.New("submit requires a chapter id and a file path")
		}
		return a.submit(ctx, args[1], args[2])
	case "files":
		return a.files(ctx)
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *App) ping(ctx context.Context) error {
	if err := a.api.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "server is reachable")
	return nil
}

func (a *App) resume(ctx context.Context, chapterID, courseID string) error {
	result, err := a.reconciler.Reconcile(ctx, chapterID, courseID)
	if err != nil {
		return err
	}

	if result.Notice != "" {
		fmt.Fprintln(a.out, result.Notice)
	}

	switch result.Outcome {
	case services.ResumedLocal:
		fmt.Fprintf(a.out, "resumed session %s from this device\n", result.SessionID)
	case services.ResumedRemote:
		fmt.Fprintf(a.out, "recovered session %s from the server\n", result.SessionID)
	default:
		fmt.Fprintf(a.out, "started fresh session %s\n", result.SessionID)
	}
	return nil
}

// record appends one completed exchange to the chapter's session, numbering
// it after the last stored turn. The process is one-shot, so it drains the
// detached sync before returning.
func (a *App) record(ctx context.Context, chapterID, userMessage, agentResponse string) error {
	session, err := a.store.Sessions(a.store.DB).GetByChapter(ctx, chapterID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no session for chapter %s; run resume first", chapterID)
		}
		return err
	}

	last, err := a.store.Turns(a.store.DB).MaxTurnIndex(ctx, session.SessionID)
	if err != nil {
		return err
	}
	index := last + 1

	err = a.recorder.RecordTurn(ctx,
		&services.Target{SessionID: session.SessionID, ChapterID: chapterID},
		services.TurnInput{
			SessionID:     session.SessionID,
			ChapterID:     chapterID,
			TurnIndex:     index,
			UserMessage:   userMessage,
			AgentResponse: agentResponse,
		})
	if err != nil {
		return err
	}
	a.dispatcher.Wait()

	fmt.Fprintf(a.out, "recorded turn %d for session %s\n", index, session.SessionID)
	return nil
}

func (a *App) submit(ctx context.Context, chapterID, path string) error {
	sessionID := ""
	if session, err := a.store.Sessions(a.store.DB).GetByChapter(ctx, chapterID); err == nil {
		sessionID = session.SessionID
	}

	usage, err := a.submitter.Submit(ctx, chapterID, sessionID, path)
	if err != nil {
		var qErr *common.QuotaExceededError
		if errors.As(err, &qErr) {
			fmt.Fprintf(a.out, "submission rejected: %s\n", qErr.Error())
		}
		return err
	}

	fmt.Fprintf(a.out, "submitted; quota %d of %d bytes used\n", usage.UsedBytes, usage.LimitBytes)
	return nil
}

func (a *App) files(ctx context.Context) error {
	list, err := a.api.ListFiles(ctx)
	if err != nil {
		return err
	}

	for _, f := range list.Files {
		fmt.Fprintf(a.out, "%s\t%s\t%d bytes\n", f.ChapterID, f.Filename, f.FileSizeBytes)
	}
	fmt.Fprintf(a.out, "quota %d of %d bytes used\n", list.QuotaUsedBytes, list.QuotaLimitBytes)
	return nil
}
