package replay

// APR replays against the Apache Portable Runtime pools.
var APR = &TemplateTarget{
	TargetName:     "apr",
	Type:           "apr_pool_t",
	RootFormat:     "apr_pool_create(&%s, 0);",
	CreateFormat:   "apr_pool_create(&%s, %s);",
	AllocFormat:    "apr_palloc(%s, %d);",
	ClearFormat:    "apr_pool_clear(%s);",
	DestroyFormat:  "apr_pool_destroy(%s);",
	HeaderTemplate: aprHeader,
	FooterTemplate: aprFooter,
}

// PoCore replays against the PoCore pools.
var PoCore = &TemplateTarget{
	TargetName:     "pocore",
	Type:           "pc_pool_t",
	RootFormat:     "%s = pc_pool_root(ctx);",
	CreateFormat:   "%s = pc_pool_create(%s);",
	AllocFormat:    "pc_alloc(%s, %d);",
	ClearFormat:    "pc_pool_clear(%s);",
	DestroyFormat:  "pc_pool_destroy(%s);",
	HeaderTemplate: pocoreHeader,
	FooterTemplate: pocoreFooter,
}

const timingFooter = `
  uint64_t end = mach_absolute_time();
  mach_timebase_info_data_t info;
  mach_timebase_info(&info);
  uint64_t elapsed = (end - start) * info.numer / info.denom;
  printf("elapsed=%d.%03d usec\n", (int)(elapsed/1000), (int)(elapsed%1000));
  return 0;
}
`

const aprHeader = `
/* build with: gcc -lapr-1 FILENAME.c  */
#include <stdio.h>
#include <mach/mach_time.h>
#include <apr-1/apr_pools.h>
int main(int argc, const char **argv)
{
  uint64_t start = mach_absolute_time();
  int i = {{.Iterations}};
  while (i--)
  {
    apr_initialize();
`

const aprFooter = `
    apr_terminate();
  }` + timingFooter

const pocoreHeader = `
/* build with: gcc -L... -lpc-0 -I... FILENAME.c  */
#include <stdio.h>
#include <mach/mach_time.h>
#include "pc_misc.h"
#include "pc_memory.h"
int main(int argc, const char **argv)
{
  uint64_t start = mach_absolute_time();
  int i = {{.Iterations}};
  while (i--)
  {
    pc_context_t *ctx = pc_context_create();
`

const pocoreFooter = `
    pc_context_destroy(ctx);
  }` + timingFooter
