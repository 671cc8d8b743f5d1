package query

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInvalidCommand        = errors.New("query: invalid command")
	ErrInvalidIdentifier     = errors.New("query: invalid identifier")
	ErrInvalidNumberOfTokens = errors.New("query: invalid number of tokens")
)

func Parse(input string) (*Command, error) {
	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return nil, ErrInvalidCommand
	}

	tokens, err := tokenize(trimmedInput)
	if err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		return nil, ErrInvalidCommand
	}

	switch strings.ToUpper(tokens[0]) {
	case CREATE:
		return parseCreate(tokens[1:])

	case INSERT:
		if len(tokens) < 3 {
			return nil, ErrInvalidNumberOfTokens
		}

		if !isValidIdentifier(tokens[1]) {
			return nil, ErrInvalidIdentifier
		}

		return &Command{
			Type:   CommandInsert,
			Table:  tokens[1],
			Values: tokens[2:],
		}, nil

	case SELECT, DELETE, DEBUG:
		if len(tokens) < 2 {
			return nil, ErrInvalidNumberOfTokens
		}

		if !isValidIdentifier(tokens[1]) {
			return nil, ErrInvalidIdentifier
		}

		cmd := &Command{Table: tokens[1]}
		switch strings.ToUpper(tokens[0]) {
		case SELECT:
			cmd.Type = CommandSelect
		case DELETE:
			cmd.Type = CommandDelete
		default:
			cmd.Type = CommandDebug
			if len(tokens) != 2 {
				return nil, ErrInvalidNumberOfTokens
			}
			return cmd, nil
		}

		where, err := parseWhere(tokens[2:])
		if err != nil {
			return nil, err
		}
		cmd.Where = where
		return cmd, nil

	case UPDATE:
		if len(tokens) < 5 {
			return nil, ErrInvalidNumberOfTokens
		}

		if !isValidIdentifier(tokens[1]) || !isValidIdentifier(tokens[3]) {
			return nil, ErrInvalidIdentifier
		}

		if strings.ToUpper(tokens[2]) != SET {
			return nil, ErrInvalidCommand
		}

		where, err := parseWhere(tokens[5:])
		if err != nil {
			return nil, err
		}

		return &Command{
			Type:  CommandUpdate,
			Table: tokens[1],
			Set:   &Assignment{Column: tokens[3], Value: tokens[4]},
			Where: where,
		}, nil

	case VACUUM, EXIT, HELP:
		if len(tokens) != 1 {
			return nil, ErrInvalidNumberOfTokens
		}

		switch strings.ToUpper(tokens[0]) {
		case VACUUM:
			return &Command{Type: CommandVacuum}, nil
		case EXIT:
			return &Command{Type: CommandExit}, nil
		default:
			return &Command{Type: CommandHelp}, nil
		}

	case TRANSACTION:
		if len(tokens) < 2 {
			return nil, ErrInvalidNumberOfTokens
		}

		switch strings.ToUpper(tokens[1]) {
		case BEGIN:
			if len(tokens) > 3 {
				return nil, ErrInvalidNumberOfTokens
			}

			cmd := &Command{Type: CommandBegin}
			if len(tokens) == 3 {
				cmd.Isolation = strings.ToLower(tokens[2])
			}
			return cmd, nil

		case ABORT, COMMIT:
			if len(tokens) != 2 {
				return nil, ErrInvalidNumberOfTokens
			}

			if strings.ToUpper(tokens[1]) == ABORT {
				return &Command{Type: CommandAbort}, nil
			}
			return &Command{Type: CommandCommit}, nil

		default:
			return nil, ErrInvalidCommand
		}

	default:
		return nil, ErrInvalidCommand
	}
}

func parseCreate(tokens []string) (*Command, error) {
	if len(tokens) < 2 {
		return nil, ErrInvalidNumberOfTokens
	}

	if !isValidIdentifier(tokens[0]) {
		return nil, ErrInvalidIdentifier
	}

	cmd := &Command{Type: CommandCreate, Table: tokens[0]}
	for _, token := range tokens[1:] {
		name, kind, ok := strings.Cut(token, ":")
		if !ok || !isValidIdentifier(name) || kind == "" {
			return nil, errors.Wrapf(ErrInvalidIdentifier, "column %q", token)
		}
		cmd.Columns = append(cmd.Columns, ColumnDef{Name: name, Type: strings.ToLower(kind)})
	}

	return cmd, nil
}

func parseWhere(tokens []string) (*Condition, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	if len(tokens) != 4 {
		return nil, ErrInvalidNumberOfTokens
	}

	if strings.ToUpper(tokens[0]) != WHERE {
		return nil, ErrInvalidCommand
	}

	if !isValidIdentifier(tokens[1]) {
		return nil, ErrInvalidIdentifier
	}

	return &Condition{Column: tokens[1], Op: tokens[2], Value: tokens[3]}, nil
}

func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}

	for i := 0; i < len(name); i++ {
		c := name[i]

		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_', c == '-', c == '.':
		default:
			return false
		}
	}

	return true
}
