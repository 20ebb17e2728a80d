// Package cli общие помощники команд клиента
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"scoutsync/internal/app/client"
)

var (
	Success = color.New(color.FgGreen).SprintFunc()
	Warning = color.New(color.FgYellow).SprintFunc()
	Failure = color.New(color.FgRed).SprintFunc()
	Muted   = color.New(color.Faint).SprintFunc()
)

// App возвращает приложение, созданное корневой командой
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := client.FromContext(cmd.Context())
	if !ok || app == nil {
		return nil, fmt.Errorf("приложение не инициализировано")
	}
	return app, nil
}

// JSON сообщает, запрошен ли вывод в формате JSON
func JSON(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

// PrintJSON печатает значение с отступами
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("ошибка форматирования JSON: %w", err)
	}
	return nil
}

// Confirm спрашивает подтверждение у пользователя.
// Без терминала подтвердить нельзя, нужен флаг --yes.
func Confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("нет интерактивного терминала, используйте --yes")
	}

	fmt.Printf("%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "д", "да":
		return true, nil
	}
	return false, nil
}

// ReadPayload читает JSON из аргумента, файла или stdin ("-")
func ReadPayload(inline, file string) (json.RawMessage, error) {
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("укажите либо --payload, либо --file")
	case inline != "":
		return json.RawMessage(inline), nil
	case file == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения stdin: %w", err)
		}
		return json.RawMessage(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения файла: %w", err)
		}
		return json.RawMessage(data), nil
	}
	return nil, fmt.Errorf("не указано содержимое: --payload или --file")
}
