package domain

// ExecState — состояние выполнения task.
//
// Жизненный цикл:
//
//	NONE → IN_PROGRESS → OK
//	                   ↘ ERROR
//	(reset из любого состояния) → NONE
type ExecState string

const (
	// ExecStateNone — task создан и ждёт назначения на processor.
	ExecStateNone ExecState = "NONE"

	// ExecStateInProgress — task назначен ядру processor'а.
	ExecStateInProgress ExecState = "IN_PROGRESS"

	// ExecStateOK — функция отработала успешно.
	ExecStateOK ExecState = "OK"

	// ExecStateError — функция завершилась с ошибкой.
	ExecStateError ExecState = "ERROR"
)

// IsTerminal возвращает true, если task завершён (OK или ERROR).
func (s ExecState) IsTerminal() bool {
	return s == ExecStateOK || s == ExecStateError
}

// ParseExecState парсит строку в ExecState.
// Неизвестные значения трактуются как NONE.
func ParseExecState(s string) ExecState {
	switch s {
	case "IN_PROGRESS":
		return ExecStateInProgress
	case "OK":
		return ExecStateOK
	case "ERROR":
		return ExecStateError
	default:
		return ExecStateNone
	}
}

// ExecContextState — состояние exec context.
//
// Жизненный цикл:
//
//	NONE → PRODUCING → STARTED → FINISHED
//	                 ↘ ERROR   ↘ ERROR
//	          (или) → STOPPED
type ExecContextState string

const (
	// ExecContextStateNone — exec context создан, граф ещё не построен.
	ExecContextStateNone ExecContextState = "NONE"

	// ExecContextStateProducing — идёт построение графа tasks.
	ExecContextStateProducing ExecContextState = "PRODUCING"

	// ExecContextStateStarted — граф построен, tasks раздаются processor'ам.
	ExecContextStateStarted ExecContextState = "STARTED"

	// ExecContextStateFinished — все tasks завершены успешно.
	ExecContextStateFinished ExecContextState = "FINISHED"

	// ExecContextStateError — построение графа или один из tasks завершился ошибкой.
	ExecContextStateError ExecContextState = "ERROR"

	// ExecContextStateStopped — остановлен пользователем.
	ExecContextStateStopped ExecContextState = "STOPPED"
)

// IsTerminal возвращает true, если exec context завершён.
func (s ExecContextState) IsTerminal() bool {
	switch s {
	case ExecContextStateFinished, ExecContextStateError, ExecContextStateStopped:
		return true
	default:
		return false
	}
}

// ProducingStatus — результат создания tasks для одного шага графа.
type ProducingStatus string

const (
	ProducingStatusOK                        ProducingStatus = "OK"
	ProducingStatusProcessNotFound           ProducingStatus = "PROCESS_NOT_FOUND"
	ProducingStatusTooManyLevelsOfSubProcess ProducingStatus = "TOO_MANY_LEVELS_OF_SUBPROCESSES_ERROR"
	ProducingStatusInternalFunctionNotSupp   ProducingStatus = "INTERNAL_FUNCTION_NOT_SUPPORTED"
	ProducingStatusError                     ProducingStatus = "PRODUCING_ERROR"
)

// UploadStatus — результат пометки "результат получен" для task.
type UploadStatus string

const (
	UploadStatusOK                              UploadStatus = "OK"
	UploadStatusTaskNotFound                    UploadStatus = "TASK_NOT_FOUND"
	UploadStatusTaskWasReset                    UploadStatus = "TASK_WAS_RESET"
	UploadStatusConcurrentModificationExhausted UploadStatus = "CONCURRENT_MODIFICATION_EXHAUSTED"
)

// String возвращает строковое представление UploadStatus.
func (s UploadStatus) String() string {
	return string(s)
}
