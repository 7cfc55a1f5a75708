// Package reaper возвращает в работу tasks, зависшие на ушедших processor'ах.
//
// Reaper по cron-расписанию ищет tasks в состоянии IN_PROGRESS,
// назначенные раньше now - AssignmentTimeout и так и не завершённые,
// и сбрасывает их через orchestrator. Сброс затрагивает и потомков task'а,
// поэтому граф exec context'а остаётся согласованным.
//
// Использование:
//
//	r, err := reaper.New(reaper.Config{
//	    Tasks:             taskRepo,
//	    Resetter:          orch,
//	    Schedule:          "@every 1m",
//	    AssignmentTimeout: 10 * time.Minute,
//	    Logger:            logger,
//	})
//	r.Start()
//	defer r.Stop()
//
// В тестах Tick вызывается напрямую.
package reaper
